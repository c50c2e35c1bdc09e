package scoring

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/mindline/internal/models"
)

// Signal rates one aspect of an item in [0,1].
type Signal interface {
	Name() string
	Value(i int, bc *BatchContext) float64
}

// BatchContext holds what the signals need to know about the whole batch.
type BatchContext struct {
	Items []models.TimelineItem
	Now   time.Time
	// CrossRefs[i] is the number of other items sharing a concept with item i
	// within the cross-reference window.
	CrossRefs []int
}

func newBatchContext(items []models.TimelineItem, now time.Time, window time.Duration) *BatchContext {
	return &BatchContext{Items: items, Now: now, CrossRefs: crossRefs(items, window)}
}

// crossRefs counts, per item, the distinct other items that share at least one
// concept and lie within window of it.
func crossRefs(items []models.TimelineItem, window time.Duration) []int {
	byConcept := make(map[string][]int)
	for i, it := range items {
		seen := make(map[string]bool, len(it.ExtractedConcepts))
		for _, c := range it.ExtractedConcepts {
			if !seen[c] {
				seen[c] = true
				byConcept[c] = append(byConcept[c], i)
			}
		}
	}
	concepts := make([]string, 0, len(byConcept))
	for c := range byConcept {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)

	linked := make([]map[int]bool, len(items))
	for _, c := range concepts {
		idx := byConcept[c]
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				i, j := idx[a], idx[b]
				if absDuration(items[i].Timestamp.Sub(items[j].Timestamp)) > window {
					continue
				}
				if linked[i] == nil {
					linked[i] = make(map[int]bool)
				}
				if linked[j] == nil {
					linked[j] = make(map[int]bool)
				}
				linked[i][j] = true
				linked[j][i] = true
			}
		}
	}
	out := make([]int, len(items))
	for i := range linked {
		out[i] = len(linked[i])
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// RecencySignal decays exponentially with age; an item one half-life old scores 0.5.
type RecencySignal struct{ HalfLife time.Duration }

func (RecencySignal) Name() string { return "recency" }

func (s RecencySignal) Value(i int, bc *BatchContext) float64 {
	age := bc.Now.Sub(bc.Items[i].Timestamp)
	if age <= 0 || s.HalfLife <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Hours() / s.HalfLife.Hours())
}

// SourceSignal is the item's source weight relative to the heaviest source.
type SourceSignal struct{ Weights map[models.SourceType]float64 }

func (SourceSignal) Name() string { return "source" }

func (s SourceSignal) Value(i int, bc *BatchContext) float64 {
	var top float64
	for _, w := range s.Weights {
		top = math.Max(top, w)
	}
	if top <= 0 {
		return 0
	}
	return math.Max(0, s.Weights[bc.Items[i].SourceType]) / top
}

// LengthSignal grows with the logarithm of content length and saturates at Cap runes.
type LengthSignal struct{ Cap int }

func (LengthSignal) Name() string { return "length" }

func (s LengthSignal) Value(i int, bc *BatchContext) float64 {
	if s.Cap <= 0 {
		return 0
	}
	n := utf8.RuneCountInString(bc.Items[i].Content)
	return math.Min(1, math.Log1p(float64(n))/math.Log1p(float64(s.Cap)))
}

// CrossRefSignal is the share of the rest of the batch an item connects to.
type CrossRefSignal struct{}

func (CrossRefSignal) Name() string { return "crossref" }

func (CrossRefSignal) Value(i int, bc *BatchContext) float64 {
	if len(bc.Items) < 2 {
		return 0
	}
	return float64(bc.CrossRefs[i]) / float64(len(bc.Items)-1)
}
