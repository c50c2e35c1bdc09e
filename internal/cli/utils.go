// Package cli formats timeline query results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/pipeline"
	"github.com/hyperjump/mindline/internal/query"
	"github.com/hyperjump/mindline/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

const (
	rule       = "─────────────────────────────────────────────────────────"
	stamp      = "2006-01-02 15:04"
	snippetLen = 200
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteItems writes timeline items to w in the given format.
func WriteItems(w io.Writer, items []models.TimelineItem, format OutputFormat) error {
	if format == OutputJSON {
		if items == nil {
			items = []models.TimelineItem{}
		}
		return writeJSON(w, map[string]any{"items": items, "count": len(items)})
	}
	fmt.Fprintf(w, "\n%d item(s)\n\n", len(items))
	for i := range items {
		writeOneItem(w, &items[i], "")
	}
	return nil
}

// WriteResults writes ranked full-text hits to w in the given format.
func WriteResults(w io.Writer, results []query.Result, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []query.Result{}
		}
		return writeJSON(w, map[string]any{"results": results, "count": len(results)})
	}
	fmt.Fprintf(w, "\nFound %d result(s)\n\n", len(results))
	for i := range results {
		writeOneItem(w, &results[i].Item, fmt.Sprintf("Rank: %d | Score: %.4f", i+1, results[i].Score))
	}
	return nil
}

func writeOneItem(w io.Writer, it *models.TimelineItem, rank string) {
	fmt.Fprintln(w, rule)
	if rank != "" {
		fmt.Fprintf(w, "%s | ", rank)
	}
	fmt.Fprintf(w, "[%s] %s | Importance: %.2f\n", it.SourceType, it.Timestamp.Local().Format(stamp), it.ImportanceScore)
	fmt.Fprintf(w, "ID: %s\n", it.ID)
	if it.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", it.Title)
	}
	if len(it.ExtractedConcepts) > 0 {
		fmt.Fprintf(w, "Concepts: %s\n", TruncateWords(strings.Join(it.ExtractedConcepts, ", "), 10))
	}
	if len(it.ConceptCategories) > 0 {
		fmt.Fprintf(w, "Category: %s\n", it.ConceptCategories[0])
	}
	body := it.Summary
	if body == "" {
		body = utils.CollapseWhitespace(it.Content)
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(body, snippetLen))
}

// WriteConcepts writes concept frequencies to w in the given format.
func WriteConcepts(w io.Writer, concepts []models.ConceptCount, format OutputFormat) error {
	if format == OutputJSON {
		if concepts == nil {
			concepts = []models.ConceptCount{}
		}
		return writeJSON(w, map[string]any{"concepts": concepts})
	}
	width := 0
	for _, c := range concepts {
		width = max(width, len(c.Concept))
	}
	for i, c := range concepts {
		fmt.Fprintf(w, "%3d. %-*s  %d\n", i+1, width, c.Concept, c.Count)
	}
	return nil
}

// WriteClusters writes concept clusters to w in the given format.
func WriteClusters(w io.Writer, clusters []models.ConceptCluster, format OutputFormat) error {
	if format == OutputJSON {
		if clusters == nil {
			clusters = []models.ConceptCluster{}
		}
		return writeJSON(w, map[string]any{"clusters": clusters, "count": len(clusters)})
	}
	fmt.Fprintf(w, "\n%d cluster(s)\n\n", len(clusters))
	for _, c := range clusters {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%s | Importance: %.2f | Items: %d\n", c.Name, c.ImportanceScore, len(c.TimelineItemIDs))
		fmt.Fprintf(w, "Concepts: %s\n", TruncateWords(strings.Join(c.Concepts, ", "), 12))
		if c.TimeRange != nil {
			fmt.Fprintf(w, "Span: %s", formatSpan(c.TimeRange.Start, c.TimeRange.End))
			fmt.Fprintln(w)
		}
		if c.Description != "" {
			fmt.Fprintf(w, "%s\n", c.Description)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteStats writes range statistics to w in the given format.
func WriteStats(w io.Writer, stats *models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "total_items:        %d\n", stats.TotalItems)
	fmt.Fprintf(w, "avg_concepts:       %.2f\n", stats.AverageConceptsPerItem)
	if stats.DateRange != nil {
		fmt.Fprintf(w, "date_range:         %s\n", formatSpan(stats.DateRange.Start, stats.DateRange.End))
	}
	writeCounts(w, "by_source", sourceCounts(stats.BySource))
	writeCounts(w, "by_category", categoryCounts(stats.ByCategory))
	return nil
}

// WriteWindows writes time windows to w in the given format.
func WriteWindows(w io.Writer, windows []models.TimeWindow, format OutputFormat) error {
	if format == OutputJSON {
		if windows == nil {
			windows = []models.TimeWindow{}
		}
		return writeJSON(w, map[string]any{"windows": windows})
	}
	for _, win := range windows {
		meeting := ""
		if win.HasMeeting {
			meeting = "  [meeting]"
		}
		fmt.Fprintf(w, "%s  %.2f  %s%s\n", formatSpan(win.Start, win.End), win.ImportanceScore, win.ActivitySummary, meeting)
	}
	return nil
}

// WriteAnalysis writes an analysis run report to w in the given format.
func WriteAnalysis(w io.Writer, res *pipeline.Result, exported string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			*pipeline.Result
			Export string `json:"export,omitempty"`
		}{res, exported})
	}
	fmt.Fprintf(w, "run:                %s\n", res.RunID)
	fmt.Fprintf(w, "window:             %s\n", formatSpan(res.Start, res.End))
	fmt.Fprintf(w, "items:              %d\n", len(res.Items))
	fmt.Fprintf(w, "clusters:           %d\n", len(res.Clusters))
	fmt.Fprintf(w, "skipped:            %d\n", res.Skipped)
	fmt.Fprintf(w, "duration:           %s\n", res.Duration.Round(time.Millisecond))
	writeCounts(w, "fetched", sourceCounts(res.Fetched))
	if len(res.SourceErrors) > 0 {
		fmt.Fprintln(w, "\n# source errors")
		for _, src := range sortedSources(res.SourceErrors) {
			fmt.Fprintf(w, "%-19s %s\n", string(src)+":", res.SourceErrors[src])
		}
	}
	if exported != "" {
		fmt.Fprintf(w, "\nexported:           %s\n", exported)
	}
	return nil
}

type count struct {
	key string
	n   int
}

func sourceCounts(m map[models.SourceType]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{string(k), n})
	}
	return out
}

func categoryCounts(m map[models.Category]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{string(k), n})
	}
	return out
}

func writeCounts(w io.Writer, title string, counts []count) {
	if len(counts) == 0 {
		return
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].key < counts[j].key
	})
	fmt.Fprintf(w, "\n# %s\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "%-19s %d\n", c.key+":", c.n)
	}
}

func sortedSources(m map[models.SourceType]string) []models.SourceType {
	out := make([]models.SourceType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func formatSpan(start, end time.Time) string {
	return start.Local().Format(stamp) + " → " + end.Local().Format(stamp)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
