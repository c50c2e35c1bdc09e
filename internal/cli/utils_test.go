package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/pipeline"
	"github.com/hyperjump/mindline/internal/query"
)

var at = time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)

func sampleItem() models.TimelineItem {
	return models.TimelineItem{
		ID:                "email:abc",
		SourceType:        models.SourceEmail,
		Title:             "Invoice from vendor",
		Content:           "Please   find the\n invoice attached.",
		Timestamp:         at,
		ExtractedConcepts: []string{"invoice", "vendor"},
		ConceptCategories: []models.Category{models.CategoryCommunication},
		ImportanceScore:   0.72,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"compact", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteItems_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteItems(&buf, []models.TimelineItem{sampleItem()}, OutputJSON); err != nil {
		t.Fatalf("WriteItems(json): %v", err)
	}
	var decoded struct {
		Count int                   `json:"count"`
		Items []models.TimelineItem `json:"items"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Count != 1 || decoded.Items[0].ID != "email:abc" {
		t.Errorf("decoded = %+v, want one item email:abc", decoded)
	}
}

func TestWriteItems_JSON_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteItems(&buf, nil, OutputJSON); err != nil {
		t.Fatalf("WriteItems(json): %v", err)
	}
	if !strings.Contains(buf.String(), `"items": []`) {
		t.Errorf("empty result should encode an empty array, got %s", buf.String())
	}
}

func TestWriteItems_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteItems(&buf, []models.TimelineItem{sampleItem()}, OutputText); err != nil {
		t.Fatalf("WriteItems(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"1 item(s)", "[email]", "Importance: 0.72", "ID: email:abc",
		"Title: Invoice from vendor", "Concepts: invoice, vendor", "Category: communication",
		"Please find the invoice attached."} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteItems_textPrefersSummary(t *testing.T) {
	it := sampleItem()
	it.Summary = "Vendor sent the April invoice."
	var buf bytes.Buffer
	_ = WriteItems(&buf, []models.TimelineItem{it}, OutputText)
	if !strings.Contains(buf.String(), it.Summary) || strings.Contains(buf.String(), "Please") {
		t.Errorf("expected summary instead of content:\n%s", buf.String())
	}
}

func TestWriteResults_text(t *testing.T) {
	var buf bytes.Buffer
	results := []query.Result{{Item: sampleItem(), Score: 1.25}}
	if err := WriteResults(&buf, results, OutputText); err != nil {
		t.Fatalf("WriteResults(text): %v", err)
	}
	for _, sub := range []string{"Found 1 result(s)", "Rank: 1 | Score: 1.2500", "email:abc"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestWriteConcepts_text(t *testing.T) {
	var buf bytes.Buffer
	concepts := []models.ConceptCount{{Concept: "invoice", Count: 4}, {Concept: "qa", Count: 1}}
	if err := WriteConcepts(&buf, concepts, OutputText); err != nil {
		t.Fatalf("WriteConcepts: %v", err)
	}
	want := "  1. invoice  4\n  2. qa       1\n"
	if buf.String() != want {
		t.Errorf("WriteConcepts = %q, want %q", buf.String(), want)
	}
}

func TestWriteClusters_text(t *testing.T) {
	var buf bytes.Buffer
	clusters := []models.ConceptCluster{{
		ID: "cluster:1", Name: "invoice", Concepts: []string{"invoice", "vendor"},
		TimelineItemIDs: []string{"a", "b", "c"}, ImportanceScore: 0.5,
		Description: "3 items about invoice",
		TimeRange:   &models.TimeRange{Start: at, End: at.Add(time.Hour)},
	}}
	if err := WriteClusters(&buf, clusters, OutputText); err != nil {
		t.Fatalf("WriteClusters: %v", err)
	}
	for _, sub := range []string{"1 cluster(s)", "invoice | Importance: 0.50 | Items: 3", "Concepts: invoice, vendor", "Span: ", "3 items about invoice"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestWriteStats_text(t *testing.T) {
	var buf bytes.Buffer
	stats := &models.Stats{
		TotalItems:             3,
		BySource:               map[models.SourceType]int{models.SourceEmail: 1, models.SourceNote: 2},
		ByCategory:             map[models.Category]int{models.CategoryOther: 3},
		AverageConceptsPerItem: 2.5,
	}
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatalf("WriteStats: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "total_items:        3") || !strings.Contains(out, "avg_concepts:       2.50") {
		t.Errorf("missing totals:\n%s", out)
	}
	if strings.Index(out, "note:") > strings.Index(out, "email:") {
		t.Errorf("sources should be ordered by count:\n%s", out)
	}
}

func TestWriteAnalysis(t *testing.T) {
	res := &pipeline.Result{
		RunID: "run-1", Start: at, End: at.Add(24 * time.Hour),
		Items:        make([]models.TimelineItem, 2),
		Fetched:      map[models.SourceType]int{models.SourceNote: 2},
		SourceErrors: map[models.SourceType]string{models.SourceEmail: "authentication failed"},
		Skipped:      1,
		Duration:     1500 * time.Millisecond,
	}
	var buf bytes.Buffer
	if err := WriteAnalysis(&buf, res, "/tmp/out.json", OutputText); err != nil {
		t.Fatalf("WriteAnalysis(text): %v", err)
	}
	for _, sub := range []string{"run:                run-1", "items:              2", "skipped:            1",
		"duration:           1.5s", "# source errors", "email:", "authentication failed", "exported:           /tmp/out.json"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteAnalysis(&buf, res, "/tmp/out.json", OutputJSON); err != nil {
		t.Fatalf("WriteAnalysis(json): %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["run_id"] != "run-1" || decoded["export"] != "/tmp/out.json" {
		t.Errorf("decoded = %v", decoded)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriteItems_JSON_writeError(t *testing.T) {
	if err := WriteItems(failingWriter{}, nil, OutputJSON); err == nil {
		t.Error("expected write error")
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
