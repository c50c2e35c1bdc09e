package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/mindline/internal/concept"
	"github.com/hyperjump/mindline/internal/models"
)

const (
	// DefaultWindow is the size of a time window and the proximity of related items.
	DefaultWindow = 24 * time.Hour
	// MinSharedConcepts is how many concepts two items share to be related.
	MinSharedConcepts = 2

	windowTopConcepts = 10
)

// Stats summarizes the items of [start, end].
func (e *Engine) Stats(ctx context.Context, start, end time.Time) (*models.Stats, error) {
	items, err := e.store.QueryByRange(ctx, start, end, models.ListOptions{Ascending: true})
	if err != nil {
		return nil, err
	}
	return Summarize(items), nil
}

// Summarize computes stats over items.
func Summarize(items []models.TimelineItem) *models.Stats {
	st := &models.Stats{
		TotalItems: len(items),
		BySource:   make(map[models.SourceType]int),
		ByCategory: make(map[models.Category]int),
	}
	if len(items) == 0 {
		return st
	}
	var concepts int
	lo, hi := items[0].Timestamp, items[0].Timestamp
	for _, it := range items {
		st.BySource[it.SourceType]++
		for _, c := range it.ConceptCategories {
			st.ByCategory[c]++
		}
		concepts += len(it.ExtractedConcepts)
		if it.Timestamp.Before(lo) {
			lo = it.Timestamp
		}
		if it.Timestamp.After(hi) {
			hi = it.Timestamp
		}
	}
	st.AverageConceptsPerItem = float64(concepts) / float64(len(items))
	st.DateRange = &models.TimeRange{Start: lo, End: hi}
	return st
}

// TimeWindows groups the items of [start, end] into windows of size. A window
// opens at the first item not yet grouped and spans size from there; empty
// stretches of time produce no window. size <= 0 uses DefaultWindow.
func (e *Engine) TimeWindows(ctx context.Context, start, end time.Time, size time.Duration) ([]models.TimeWindow, error) {
	items, err := e.store.QueryByRange(ctx, start, end, models.ListOptions{Ascending: true})
	if err != nil {
		return nil, err
	}
	return GroupWindows(items, size), nil
}

// GroupWindows groups items, which must be sorted by timestamp ascending.
func GroupWindows(items []models.TimelineItem, size time.Duration) []models.TimeWindow {
	if size <= 0 {
		size = DefaultWindow
	}
	var out []models.TimeWindow
	for i := 0; i < len(items); {
		start := items[i].Timestamp
		end := start.Add(size)
		j := i
		for j < len(items) && !items[j].Timestamp.After(end) {
			j++
		}
		out = append(out, newWindow(start, end, items[i:j]))
		i = j
	}
	return out
}

func newWindow(start, end time.Time, items []models.TimelineItem) models.TimeWindow {
	w := models.TimeWindow{
		Start:    start,
		End:      end,
		ItemIDs:  make([]string, len(items)),
		BySource: make(map[models.SourceType]int),
	}
	counts := make(map[string]int)
	var total float64
	for i, it := range items {
		w.ItemIDs[i] = it.ID
		w.BySource[it.SourceType]++
		total += it.ImportanceScore
		if it.SourceType == models.SourceMeeting {
			w.HasMeeting = true
		}
		for _, c := range it.ExtractedConcepts {
			counts[c]++
		}
	}
	if len(items) > 0 {
		w.ImportanceScore = total / float64(len(items))
	}
	w.TopConcepts = concept.Rank(counts, windowTopConcepts)
	w.ActivitySummary = activitySummary(len(items), w.BySource, w.TopConcepts)
	return w
}

// activitySummary renders e.g. "3 items (2 email, 1 meeting); top concepts: invoice, vendor".
func activitySummary(n int, bySource map[models.SourceType]int, top []string) string {
	var parts []string
	for _, src := range models.SourceTypes {
		if c := bySource[src]; c > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c, src))
		}
	}
	noun := "items"
	if n == 1 {
		noun = "item"
	}
	s := fmt.Sprintf("%d %s (%s)", n, noun, strings.Join(parts, ", "))
	if len(top) > 0 {
		if len(top) > 3 {
			top = top[:3]
		}
		s += "; top concepts: " + strings.Join(top, ", ")
	}
	return s
}

// Related returns the stored items within DefaultWindow of item id that share
// at least MinSharedConcepts concepts with it, newest first.
func (e *Engine) Related(ctx context.Context, id string) ([]models.TimelineItem, error) {
	item, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	candidates, err := e.store.QueryByRange(ctx,
		item.Timestamp.Add(-DefaultWindow), item.Timestamp.Add(DefaultWindow), models.ListOptions{})
	if err != nil {
		return nil, err
	}
	var out []models.TimelineItem
	for _, c := range candidates {
		if c.ID != item.ID && related(item, &c, DefaultWindow, MinSharedConcepts) {
			out = append(out, c)
		}
	}
	return out, nil
}

// LinkRelated sets RelatedItems on every item of the batch to the ids of the
// other items within window that share at least minShared concepts. The ids
// are sorted.
func LinkRelated(items []models.TimelineItem, window time.Duration, minShared int) {
	for i := range items {
		var ids []string
		for j := range items {
			if i != j && items[i].ID != items[j].ID && related(&items[i], &items[j], window, minShared) {
				ids = append(ids, items[j].ID)
			}
		}
		sort.Strings(ids)
		items[i].RelatedItems = ids
	}
}

func related(a, b *models.TimelineItem, window time.Duration, minShared int) bool {
	d := a.Timestamp.Sub(b.Timestamp)
	if d < 0 {
		d = -d
	}
	if d > window {
		return false
	}
	shared := 0
	for _, c := range a.ExtractedConcepts {
		if b.HasConcept(c) {
			shared++
		}
	}
	return shared >= minShared
}
