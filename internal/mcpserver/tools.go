package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/query"
	"github.com/hyperjump/mindline/internal/storage"
	"github.com/hyperjump/mindline/pkg/utils"
)

const (
	defaultLimit = 20
	maxLimit     = 200
	snippetLen   = 280
)

// Tool is one MCP tool bound to the query engine.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Tools returns every timeline tool.
func Tools(engine *query.Engine) []Tool {
	return []Tool{
		&rangeTool{engine},
		&conceptsTool{engine},
		&searchTool{engine},
		&topConceptsTool{engine},
		&clustersTool{engine},
	}
}

// itemView is the compact form of an item returned to assistants.
type itemView struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"`
	Title      string   `json:"title"`
	Timestamp  string   `json:"timestamp"`
	Concepts   []string `json:"concepts,omitempty"`
	Category   string   `json:"category,omitempty"`
	Importance float64  `json:"importance"`
	Summary    string   `json:"summary,omitempty"`
	Snippet    string   `json:"snippet"`
	Score      float64  `json:"score,omitempty"`
}

func view(it models.TimelineItem) itemView {
	v := itemView{
		ID:         it.ID,
		Source:     string(it.SourceType),
		Title:      it.Title,
		Timestamp:  it.Timestamp.Format(time.RFC3339),
		Concepts:   it.ExtractedConcepts,
		Importance: it.ImportanceScore,
		Summary:    it.Summary,
		Snippet:    utils.Truncate(utils.CollapseWhitespace(it.Content), snippetLen),
	}
	if len(it.ConceptCategories) > 0 {
		v.Category = string(it.ConceptCategories[0])
	}
	return v
}

func itemsResult(items []models.TimelineItem) (*mcp.CallToolResult, error) {
	if len(items) == 0 {
		return mcp.NewToolResultText("No timeline items found."), nil
	}
	views := make([]itemView, len(items))
	for i, it := range items {
		views[i] = view(it)
	}
	return jsonResult(map[string]any{"count": len(views), "items": views})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func failure(op string, err error) *mcp.CallToolResult {
	if errors.Is(err, storage.ErrInvalidRange) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err))
}

// intArg reads a numeric argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return def
	}
	return int(v)
}

func limitArg(req mcp.CallToolRequest) int {
	n := intArg(req, "limit", defaultLimit)
	switch {
	case n < 1:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}

// stringsArg reads an array of strings or a comma separated string.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		out = v
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func sourcesArg(req mcp.CallToolRequest) ([]models.SourceType, error) {
	var out []models.SourceType
	for _, s := range stringsArg(req, "sources") {
		src := models.SourceType(strings.ToLower(s))
		if !src.Valid() {
			return nil, fmt.Errorf("unknown source %q", s)
		}
		out = append(out, src)
	}
	return out, nil
}

func timeArg(req mcp.CallToolRequest, key string, def time.Time) (time.Time, error) {
	v := strings.TrimSpace(req.GetString(key, ""))
	if v == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected RFC 3339 or YYYY-MM-DD, got %q", key, v)
	}
	return t, nil
}

// endArg is timeArg for inclusive upper bounds: a plain date means the end of
// that day.
func endArg(req mcp.CallToolRequest, key string, def time.Time) (time.Time, error) {
	v := strings.TrimSpace(req.GetString(key, ""))
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return models.EndOfDay(t), nil
	}
	return timeArg(req, key, def)
}

func sourcesOption() mcp.ToolOption {
	return mcp.WithArray("sources",
		mcp.Description("Restrict to sources: screenshot, note, email, meeting"),
		mcp.WithStringItems(),
	)
}

type rangeTool struct{ engine *query.Engine }

func (t *rangeTool) Definition() mcp.Tool {
	return mcp.NewTool("timeline_range",
		mcp.WithDescription("List timeline items whose timestamp lies within [start, end], newest first."),
		mcp.WithString("start", mcp.Required(), mcp.Description("Range start, RFC 3339 or YYYY-MM-DD")),
		mcp.WithString("end", mcp.Description("Range end, RFC 3339 or YYYY-MM-DD (default: now)")),
		sourcesOption(),
		mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 200)")),
	)
}

func (t *rangeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.GetString("start", "") == "" {
		return mcp.NewToolResultError("'start' is required"), nil
	}
	start, err := timeArg(req, "start", models.Earliest)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := endArg(req, "end", time.Now().UTC())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sources, err := sourcesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := t.engine.Range(ctx, start, end, models.ListOptions{Limit: limitArg(req), Sources: sources})
	if err != nil {
		return failure("range query", err), nil
	}
	return itemsResult(items)
}

type conceptsTool struct{ engine *query.Engine }

func (t *conceptsTool) Definition() mcp.Tool {
	return mcp.NewTool("timeline_by_concepts",
		mcp.WithDescription("List items tagged with every given concept. Words are normalized, so \"Invoices\" matches \"invoice\"."),
		mcp.WithArray("concepts", mcp.Required(), mcp.Description("Concept words, all of which must match"), mcp.WithStringItems()),
		sourcesOption(),
		mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 200)")),
	)
}

func (t *conceptsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	concepts := stringsArg(req, "concepts")
	if len(concepts) == 0 {
		return mcp.NewToolResultError("'concepts' needs at least one word"), nil
	}
	sources, err := sourcesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := t.engine.ByConcepts(ctx, concepts, models.ListOptions{Limit: limitArg(req), Sources: sources})
	if err != nil {
		return failure("concept query", err), nil
	}
	return itemsResult(items)
}

type searchTool struct{ engine *query.Engine }

func (t *searchTool) Definition() mcp.Tool {
	return mcp.NewTool("timeline_search",
		mcp.WithDescription("Search item titles and content. Ranked full-text search tolerates typos; substring search matches exact text ignoring case."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Words or phrase to find")),
		mcp.WithString("mode", mcp.Description("fulltext (default) or substring"), mcp.Enum("fulltext", "substring")),
		sourcesOption(),
		mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 200)")),
	)
}

func (t *searchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := strings.TrimSpace(req.GetString("query", ""))
	if q == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	sources, err := sourcesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := limitArg(req)

	if req.GetString("mode", "fulltext") != "substring" {
		opts := &keyword.SearchOptions{TitleBoost: 2, Fuzziness: 1, Sources: sources}
		results, err := t.engine.FullText(ctx, q, limit, opts)
		if err == nil {
			if len(results) == 0 {
				return mcp.NewToolResultText("No timeline items found."), nil
			}
			views := make([]itemView, len(results))
			for i, r := range results {
				views[i] = view(r.Item)
				views[i].Score = r.Score
			}
			return jsonResult(map[string]any{"count": len(views), "items": views})
		}
		if !errors.Is(err, query.ErrNoIndex) {
			return failure("search", err), nil
		}
	}
	items, err := t.engine.Search(ctx, q, models.ListOptions{Limit: limit, Sources: sources})
	if err != nil {
		return failure("search", err), nil
	}
	return itemsResult(items)
}

type topConceptsTool struct{ engine *query.Engine }

func (t *topConceptsTool) Definition() mcp.Tool {
	return mcp.NewTool("timeline_top_concepts",
		mcp.WithDescription("The most common concepts across the stored timeline, with item counts."),
		mcp.WithNumber("n", mcp.Description("How many concepts (default 20, max 200)")),
	)
}

func (t *topConceptsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := intArg(req, "n", defaultLimit)
	if n < 1 || n > maxLimit {
		n = defaultLimit
	}
	concepts, err := t.engine.TopConcepts(ctx, n)
	if err != nil {
		return failure("top concepts", err), nil
	}
	if len(concepts) == 0 {
		return mcp.NewToolResultText("No concepts yet. Run an analysis first."), nil
	}
	return jsonResult(map[string]any{"concepts": concepts})
}

type clustersTool struct{ engine *query.Engine }

func (t *clustersTool) Definition() mcp.Tool {
	return mcp.NewTool("timeline_clusters",
		mcp.WithDescription("Concept clusters from the latest analysis, most important first."),
	)
}

func (t *clustersTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clusters, err := t.engine.Clusters(ctx)
	if err != nil {
		return failure("clusters", err), nil
	}
	if len(clusters) == 0 {
		return mcp.NewToolResultText("No clusters yet. Run an analysis first."), nil
	}
	return jsonResult(map[string]any{"count": len(clusters), "clusters": clusters})
}
