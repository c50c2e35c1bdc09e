package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/metrics"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/storage"
)

var (
	start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2024, 5, 7, 23, 59, 59, 0, time.UTC)
)

func static(src models.SourceType, err error, items ...models.RawItem) connector.Connector {
	return connector.Func{Type: src, Fn: func(ctx context.Context, start, end time.Time) ([]models.RawItem, error) {
		return items, err
	}}
}

func invoiceSources() []connector.Connector {
	return []connector.Connector{
		static(models.SourceEmail, nil, models.RawItem{
			Source: models.SourceEmail, NativeID: "<inv-1@acme.example>", Timestamp: "2024-05-02T09:00:00Z",
			Title: "Invoice from Acme vendor", Body: "Acme vendor invoice attached. Payment due Friday.",
			Fields: map[string]string{models.FieldFrom: "billing@acme.example", models.FieldHasAttachments: "true"},
		}),
		static(models.SourceScreenshot, nil, models.RawItem{
			Source: models.SourceScreenshot, NativeID: "shots/invoice.md", Timestamp: "2024-05-02T10:15:00Z",
			Title: "invoice.png", Body: "ACME vendor portal\nInvoice 4411 payment pending",
			Fields: map[string]string{models.FieldWidth: "2560", models.FieldHeight: "1440"},
		}),
		static(models.SourceMeeting, nil, models.RawItem{
			Source: models.SourceMeeting, NativeID: "ff-1", Timestamp: "2024-05-03T14:00:00Z",
			Title: "Vendor review", Format: models.FormatTranscript,
			Turns: []models.Turn{
				{Speaker: "Ana", Text: "The Acme invoice is late."},
				{Speaker: "Bo", Text: "I will chase the vendor about payment."},
			},
			Fields: map[string]string{models.FieldDurationMinutes: "30"},
		}),
		static(models.SourceNote, nil, models.RawItem{
			Source: models.SourceNote, NativeID: "garden.md", Timestamp: "2024-05-06T18:00:00Z",
			Title: "Garden", Body: "Plant tomato seedlings. Water tomato beds daily.", Format: models.FormatMarkdown,
		}),
	}
}

func newPipeline(t *testing.T, conns []connector.Connector, opts ...Option) (*Pipeline, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "timeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	opts = append([]Option{WithIndex(idx), WithItemWorkers(2)}, opts...)
	return New(connector.NewFetcher(conns), store, opts...), store
}

func TestAnalyze_invoiceVendorClusters(t *testing.T) {
	p, store := newPipeline(t, invoiceSources())
	ctx := context.Background()

	res, err := p.Analyze(ctx, start, end)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Items, 4)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, res.SourceErrors)

	var invoice *models.ConceptCluster
	for i := range res.Clusters {
		c := &res.Clusters[i]
		assert.NotEmpty(t, c.TimelineItemIDs, "no orphan clusters")
		assert.GreaterOrEqual(t, c.ImportanceScore, 0.0)
		assert.LessOrEqual(t, c.ImportanceScore, 1.0)
		for _, concept := range c.Concepts {
			if concept == "invoice" {
				invoice = c
			}
		}
	}
	require.NotNil(t, invoice, "invoice concept is clustered")
	assert.Contains(t, invoice.Concepts, "vendor")
	assert.Len(t, invoice.TimelineItemIDs, 3)

	for _, it := range res.Items {
		assert.GreaterOrEqual(t, it.ImportanceScore, 0.0)
		assert.LessOrEqual(t, it.ImportanceScore, 1.0)
		assert.Len(t, it.ConceptCategories, 1)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	stored, err := store.Clusters(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(res.Clusters), len(stored))
	assert.Equal(t, res, p.Last())
}

func TestAnalyze_linksRelatedItems(t *testing.T) {
	p, _ := newPipeline(t, invoiceSources())
	res, err := p.Analyze(context.Background(), start, end)
	require.NoError(t, err)

	for _, it := range res.Items {
		if it.SourceType == models.SourceEmail {
			assert.Len(t, it.RelatedItems, 1, "the screenshot shares concepts within a day")
		}
		if it.SourceType == models.SourceNote {
			assert.Empty(t, it.RelatedItems)
		}
	}
}

func TestAnalyze_idempotent(t *testing.T) {
	p, store := newPipeline(t, invoiceSources())
	ctx := context.Background()

	first, err := p.Analyze(ctx, start, end)
	require.NoError(t, err)
	firstStored, err := store.QueryByRange(ctx, start, end, models.ListOptions{})
	require.NoError(t, err)
	firstClusters, err := store.Clusters(ctx)
	require.NoError(t, err)

	second, err := p.Analyze(ctx, start, end)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	secondStored, err := store.QueryByRange(ctx, start, end, models.ListOptions{})
	require.NoError(t, err)
	secondClusters, err := store.Clusters(ctx)
	require.NoError(t, err)

	require.Equal(t, len(firstStored), len(secondStored))
	for i := range firstStored {
		assert.Equal(t, firstStored[i].ID, secondStored[i].ID)
		assert.Equal(t, firstStored[i].ImportanceScore, secondStored[i].ImportanceScore)
		assert.Equal(t, firstStored[i].ExtractedConcepts, secondStored[i].ExtractedConcepts)
	}
	assert.Equal(t, firstClusters, secondClusters)
}

func TestAnalyze_partialSourceFailure(t *testing.T) {
	conns := append(invoiceSources()[:1],
		static(models.SourceMeeting, connector.Transient(models.SourceMeeting, errors.New("status 503"))))
	collector := metrics.New()
	p, _ := newPipeline(t, conns, WithMetrics(collector))

	res, err := p.Analyze(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	require.Contains(t, res.SourceErrors, models.SourceMeeting)
	assert.Contains(t, res.SourceErrors[models.SourceMeeting], "503")
}

func TestAnalyze_allSourcesFailed(t *testing.T) {
	p, store := newPipeline(t, []connector.Connector{
		static(models.SourceEmail, connector.Auth(models.SourceEmail, errors.New("bad password"))),
		static(models.SourceNote, errors.New("dir missing")),
	})
	res, err := p.Analyze(context.Background(), start, end)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.True(t, connector.IsAuthentication(err))
	require.NotNil(t, res)
	assert.Len(t, res.SourceErrors, 2)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, p.Last())
}

func TestAnalyze_skipsMalformed(t *testing.T) {
	p, _ := newPipeline(t, []connector.Connector{static(models.SourceNote, nil,
		models.RawItem{Source: models.SourceNote, NativeID: "ok.md", Timestamp: "2024-05-02T09:00:00Z", Body: "Quarterly roadmap draft"},
		models.RawItem{Source: models.SourceNote, NativeID: "", Timestamp: "2024-05-02T09:00:00Z", Body: "no id"},
		models.RawItem{Source: models.SourceNote, NativeID: "bad-time.md", Timestamp: "yesterday", Body: "text"},
		models.RawItem{Source: models.SourceNote, NativeID: "empty.md", Timestamp: "2024-05-02T09:00:00Z", Body: "   "},
	)})
	res, err := p.Analyze(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 3, res.Skipped)
}

func TestAnalyze_deduplicatesRevisions(t *testing.T) {
	p, _ := newPipeline(t, []connector.Connector{static(models.SourceNote, nil,
		models.RawItem{Source: models.SourceNote, NativeID: "plan.md", Timestamp: "2024-05-02T09:00:00Z",
			Modified: "2024-05-02T09:00:00Z", Body: "first draft"},
		models.RawItem{Source: models.SourceNote, NativeID: "plan.md", Timestamp: "2024-05-02T09:00:00Z",
			Modified: "2024-05-03T09:00:00Z", Body: "second draft"},
	)})
	res, err := p.Analyze(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "second draft", res.Items[0].Content)
}

func TestAnalyze_emptyWindowKeepsClusters(t *testing.T) {
	p, store := newPipeline(t, invoiceSources())
	ctx := context.Background()
	_, err := p.Analyze(ctx, start, end)
	require.NoError(t, err)
	before, err := store.Clusters(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	empty := New(connector.NewFetcher([]connector.Connector{static(models.SourceNote, nil)}), store)
	res, err := empty.Analyze(ctx, start, end)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	after, err := store.Clusters(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAnalyze_degenerateBatchKeepsClusters(t *testing.T) {
	p, store := newPipeline(t, invoiceSources())
	ctx := context.Background()
	_, err := p.Analyze(ctx, start, end)
	require.NoError(t, err)
	before, err := store.Clusters(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	single := New(connector.NewFetcher([]connector.Connector{static(models.SourceNote, nil,
		models.RawItem{Source: models.SourceNote, NativeID: "tomato.md", Timestamp: "2024-05-04T08:00:00Z",
			Title: "Tomato", Body: "Tomato."},
	)}), store)
	res, err := single.Analyze(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Empty(t, res.Clusters)

	stored, err := store.Get(ctx, res.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Tomato.", stored.Content)

	after, err := store.Clusters(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAnalyze_invalidWindow(t *testing.T) {
	p, _ := newPipeline(t, invoiceSources())
	_, err := p.Analyze(context.Background(), end, start)
	assert.Error(t, err)
}

func TestResult_Export(t *testing.T) {
	p, _ := newPipeline(t, invoiceSources())
	res, err := p.Analyze(context.Background(), start, end)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "exports")
	path, err := res.ExportTo(dir)
	require.NoError(t, err)
	assert.Equal(t, "timeline_analysis_20240507_235959.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.RunID, decoded.RunID)
	assert.Len(t, decoded.Items, len(res.Items))
	assert.Equal(t, res.Items[0].Metadata, decoded.Items[0].Metadata)
}
