package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/query"
	"github.com/hyperjump/mindline/internal/storage"
)

var day = time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

type listing struct {
	Count int        `json:"count"`
	Items []itemView `json:"items"`
}

func decode(t *testing.T, r *mcp.CallToolResult) listing {
	t.Helper()
	require.False(t, r.IsError, resultText(r))
	var l listing
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &l))
	return l
}

func ids(l listing) []string {
	out := make([]string, len(l.Items))
	for i, v := range l.Items {
		out[i] = v.ID
	}
	return out
}

func item(id string, src models.SourceType, at time.Time, title string, concepts ...string) models.TimelineItem {
	md := models.Metadata{}
	switch src {
	case models.SourceEmail:
		md.Email = &models.EmailMetadata{From: "a@example.com"}
	case models.SourceMeeting:
		md.Meeting = &models.MeetingMetadata{DurationMinutes: 30}
	default:
		md.Note = &models.NoteMetadata{}
	}
	return models.TimelineItem{
		ID: id, SourceType: src, Timestamp: at, Title: title, Content: title + " details",
		Metadata: md, ExtractedConcepts: concepts,
		ConceptCategories: []models.Category{models.CategoryOther},
		ImportanceScore:   0.5,
	}
}

func newEngine(t *testing.T, withIndex bool) *query.Engine {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	items := []models.TimelineItem{
		item("e1", models.SourceEmail, day, "Invoice from vendor", "invoice", "vendor"),
		item("m1", models.SourceMeeting, day.Add(3*time.Hour), "Vendor sync", "vendor", "invoice", "sync"),
		item("n1", models.SourceNote, day.Add(72*time.Hour), "Garden plans", "garden"),
	}
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, items))

	var opts []query.Option
	if withIndex {
		idx, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = idx.Close() })
		require.NoError(t, idx.Index(ctx, items))
		opts = append(opts, query.WithIndex(idx))
	}
	require.NoError(t, store.ReplaceClusters(ctx, []models.ConceptCluster{{
		ID: "cluster:abc", Name: "invoice", Concepts: []string{"invoice", "vendor"},
		TimelineItemIDs: []string{"e1", "m1"}, ImportanceScore: 0.8,
	}}))
	return query.NewEngine(store, opts...)
}

func TestTools_definitions(t *testing.T) {
	tools := Tools(newEngine(t, false))
	names := make([]string, len(tools))
	for i, tool := range tools {
		def := tool.Definition()
		names[i] = def.Name
		assert.NotEmpty(t, def.Description, def.Name)
	}
	assert.Equal(t, []string{
		"timeline_range", "timeline_by_concepts", "timeline_search",
		"timeline_top_concepts", "timeline_clusters",
	}, names)

	def := (&conceptsTool{}).Definition()
	assert.Contains(t, def.InputSchema.Required, "concepts")
}

func TestNew_registersTools(t *testing.T) {
	s := New(newEngine(t, false), "test")
	require.NotNil(t, s)
}

func TestRangeTool(t *testing.T) {
	tool := &rangeTool{newEngine(t, false)}
	ctx := context.Background()

	r, err := tool.Handle(ctx, makeReq(map[string]interface{}{
		"start": "2024-04-10", "end": day.Add(24 * time.Hour).Format(time.RFC3339),
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "e1"}, ids(decode(t, r)))

	r, err = tool.Handle(ctx, makeReq(map[string]interface{}{"start": "2024-04-10", "end": "2024-04-10"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "e1"}, ids(decode(t, r)), "a date-only end covers the whole day")

	r, err = tool.Handle(ctx, makeReq(map[string]interface{}{
		"start": "2024-04-01", "end": "2024-05-01", "sources": []interface{}{"note"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, ids(decode(t, r)))

	r, err = tool.Handle(ctx, makeReq(map[string]interface{}{"start": "2024-04-01", "end": "2024-05-01", "limit": float64(1)}))
	require.NoError(t, err)
	assert.Equal(t, 1, decode(t, r).Count)
}

func TestRangeTool_errors(t *testing.T) {
	tool := &rangeTool{newEngine(t, false)}
	ctx := context.Background()
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing start", map[string]interface{}{}, "'start' is required"},
		{"bad time", map[string]interface{}{"start": "yesterday"}, "RFC 3339"},
		{"bad source", map[string]interface{}{"start": "2024-04-01", "sources": "fax"}, "unknown source"},
		{"inverted", map[string]interface{}{"start": "2024-05-01", "end": "2024-04-01"}, "invalid range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tool.Handle(ctx, makeReq(tt.args))
			require.NoError(t, err)
			assert.True(t, r.IsError)
			assert.Contains(t, resultText(r), tt.want)
		})
	}
}

func TestRangeTool_empty(t *testing.T) {
	tool := &rangeTool{newEngine(t, false)}
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"start": "2020-01-01", "end": "2020-01-02"}))
	require.NoError(t, err)
	assert.False(t, r.IsError)
	assert.Equal(t, "No timeline items found.", resultText(r))
}

func TestConceptsTool(t *testing.T) {
	tool := &conceptsTool{newEngine(t, false)}
	ctx := context.Background()

	r, err := tool.Handle(ctx, makeReq(map[string]interface{}{"concepts": []interface{}{"Invoices", "vendor"}}))
	require.NoError(t, err)
	l := decode(t, r)
	assert.ElementsMatch(t, []string{"e1", "m1"}, ids(l))

	r, err = tool.Handle(ctx, makeReq(map[string]interface{}{"concepts": "sync"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids(decode(t, r)))

	r, err = tool.Handle(ctx, makeReq(map[string]interface{}{"concepts": []interface{}{}}))
	require.NoError(t, err)
	assert.True(t, r.IsError)
}

func TestSearchTool(t *testing.T) {
	ctx := context.Background()

	t.Run("fulltext", func(t *testing.T) {
		tool := &searchTool{newEngine(t, true)}
		r, err := tool.Handle(ctx, makeReq(map[string]interface{}{"query": "garden"}))
		require.NoError(t, err)
		l := decode(t, r)
		require.Equal(t, []string{"n1"}, ids(l))
		assert.Greater(t, l.Items[0].Score, 0.0)
	})

	t.Run("falls back to substring without index", func(t *testing.T) {
		tool := &searchTool{newEngine(t, false)}
		r, err := tool.Handle(ctx, makeReq(map[string]interface{}{"query": "VENDOR"}))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"e1", "m1"}, ids(decode(t, r)))
	})

	t.Run("substring", func(t *testing.T) {
		tool := &searchTool{newEngine(t, true)}
		r, err := tool.Handle(ctx, makeReq(map[string]interface{}{"query": "plans", "mode": "substring"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"n1"}, ids(decode(t, r)))
	})

	t.Run("missing query", func(t *testing.T) {
		tool := &searchTool{newEngine(t, true)}
		r, err := tool.Handle(ctx, makeReq(map[string]interface{}{"query": "  "}))
		require.NoError(t, err)
		assert.True(t, r.IsError)
	})
}

func TestTopConceptsTool(t *testing.T) {
	tool := &topConceptsTool{newEngine(t, false)}
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"n": float64(2)}))
	require.NoError(t, err)
	require.False(t, r.IsError)

	var out struct {
		Concepts []models.ConceptCount `json:"concepts"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &out))
	require.Len(t, out.Concepts, 2)
	assert.Equal(t, 2, out.Concepts[0].Count)
}

func TestClustersTool(t *testing.T) {
	tool := &clustersTool{newEngine(t, false)}
	r, err := tool.Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	require.False(t, r.IsError)
	assert.Contains(t, resultText(r), `"name": "invoice"`)
}

func TestStringsArg(t *testing.T) {
	req := makeReq(map[string]interface{}{
		"a": []interface{}{" x ", "", 3, "y"},
		"b": "p, q,,",
	})
	assert.Equal(t, []string{"x", "y"}, stringsArg(req, "a"))
	assert.Equal(t, []string{"p", "q"}, stringsArg(req, "b"))
	assert.Nil(t, stringsArg(req, "missing"))
}
