// Package query answers read-side questions over the stored timeline.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/concept"
	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/storage"
)

// ErrNoIndex is returned by FullText when no full-text index is configured.
var ErrNoIndex = errors.New("full-text index not configured")

// Result is a full-text hit resolved to its stored item.
type Result struct {
	Item  models.TimelineItem `json:"item"`
	Score float64             `json:"score"`
}

// Engine runs timeline queries against the store and the full-text index.
type Engine struct {
	store     storage.Store
	index     keyword.Index
	extractor *concept.Extractor
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIndex enables FullText.
func WithIndex(index keyword.Index) Option {
	return func(e *Engine) { e.index = index }
}

// WithExtractor sets the extractor whose normalization concept queries go through.
func WithExtractor(x *concept.Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a query engine over store.
func NewEngine(store storage.Store, opts ...Option) *Engine {
	e := &Engine{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = concept.New()
	}
	return e
}

// Get returns one item by id.
func (e *Engine) Get(ctx context.Context, id string) (*models.TimelineItem, error) {
	return e.store.Get(ctx, id)
}

// Delete removes an item from the store and the full-text index.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	if e.index != nil {
		if err := e.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to remove %s from full-text index: %w", id, err)
		}
	}
	return nil
}

// Range returns items with start <= timestamp <= end.
func (e *Engine) Range(ctx context.Context, start, end time.Time, opts models.ListOptions) ([]models.TimelineItem, error) {
	return e.store.QueryByRange(ctx, start, end, opts)
}

// ByConcepts returns items containing every word once normalized to a concept,
// so "Invoices" finds items tagged "invoice".
func (e *Engine) ByConcepts(ctx context.Context, words []string, opts models.ListOptions) ([]models.TimelineItem, error) {
	return e.store.QueryByConcepts(ctx, e.extractor.NormalizeQuery(words), opts)
}

// Search returns items whose title or content contains text, ignoring case.
func (e *Engine) Search(ctx context.Context, text string, opts models.ListOptions) ([]models.TimelineItem, error) {
	return e.store.Search(ctx, text, opts)
}

// TopConcepts returns the n most common concepts.
func (e *Engine) TopConcepts(ctx context.Context, n int) ([]models.ConceptCount, error) {
	return e.store.TopConcepts(ctx, n)
}

// Clusters returns the clusters of the latest analysis.
func (e *Engine) Clusters(ctx context.Context) ([]models.ConceptCluster, error) {
	return e.store.Clusters(ctx)
}

// FullText runs a ranked search and resolves hits to stored items. Hits whose
// item is no longer stored are dropped.
func (e *Engine) FullText(ctx context.Context, text string, limit int, opts *keyword.SearchOptions) ([]Result, error) {
	if e.index == nil {
		return nil, ErrNoIndex
	}
	hits, err := e.index.Search(ctx, text, limit, opts)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = h.Score
	}
	items, err := e.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(items) < len(hits) {
		e.logger.Debug("full-text hits missing from store", zap.Int("hits", len(hits)), zap.Int("resolved", len(items)))
	}
	out := make([]Result, len(items))
	for i, it := range items {
		out[i] = Result{Item: it, Score: scores[it.ID]}
	}
	return out, nil
}
