// Package pipeline runs one fetch-and-analyze pass: fetch every source, normalize
// and enrich the items, cluster and score the batch, then persist it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/cluster"
	"github.com/hyperjump/mindline/internal/concept"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/metrics"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/normalize"
	"github.com/hyperjump/mindline/internal/query"
	"github.com/hyperjump/mindline/internal/scoring"
	"github.com/hyperjump/mindline/internal/storage"
)

// ErrAllSourcesFailed is returned when no source produced anything usable.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Result describes one analysis pass.
type Result struct {
	RunID        string                       `json:"run_id"`
	Start        time.Time                    `json:"start"`
	End          time.Time                    `json:"end"`
	Items        []models.TimelineItem        `json:"timeline_items"`
	Clusters     []models.ConceptCluster      `json:"concept_clusters"`
	Fetched      map[models.SourceType]int    `json:"fetched"`
	SourceErrors map[models.SourceType]string `json:"source_errors,omitempty"`
	Skipped      int                          `json:"skipped"`
	Duration     time.Duration                `json:"duration_ns"`
}

// Pipeline wires the analysis stages together. Analyze calls are serialized.
type Pipeline struct {
	fetcher     *connector.Fetcher
	store       storage.Store
	index       keyword.Index
	normalizer  *normalize.Normalizer
	extractor   *concept.Extractor
	clusterer   *cluster.Engine
	scorer      *scoring.Scorer
	metrics     *metrics.Collector
	itemWorkers int
	logger      *zap.Logger

	mu   sync.Mutex
	last *Result
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIndex keeps a full-text index in sync with the store.
func WithIndex(idx keyword.Index) Option {
	return func(p *Pipeline) { p.index = idx }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

// WithExtractor replaces the default concept extractor.
func WithExtractor(e *concept.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithClusterer replaces the default cluster engine.
func WithClusterer(c *cluster.Engine) Option {
	return func(p *Pipeline) { p.clusterer = c }
}

// WithScorer replaces the default scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(p *Pipeline) { p.scorer = s }
}

// WithMetrics reports every run to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

// WithItemWorkers bounds the goroutines that normalize and enrich items.
func WithItemWorkers(n int) Option {
	return func(p *Pipeline) { p.itemWorkers = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New returns a pipeline over fetcher and store.
func New(fetcher *connector.Fetcher, store storage.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		store:       store,
		itemWorkers: runtime.NumCPU(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.normalizer == nil {
		p.normalizer = normalize.New(normalize.WithLogger(p.logger))
	}
	if p.extractor == nil {
		p.extractor = concept.New(concept.WithLogger(p.logger))
	}
	if p.clusterer == nil {
		p.clusterer = cluster.New(cluster.WithLogger(p.logger))
	}
	if p.scorer == nil {
		p.scorer = scoring.New(scoring.DefaultConfig(), scoring.WithLogger(p.logger))
	}
	if p.itemWorkers < 1 {
		p.itemWorkers = 1
	}
	return p
}

// Last returns the result of the most recent successful run, or nil.
func (p *Pipeline) Last() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Analyze fetches [start, end] from every source and analyzes the batch. It
// fails with ErrAllSourcesFailed only when no source succeeded; failures of
// single sources are listed in Result.SourceErrors.
//
// Scores are anchored at end, so analyzing the same window over unchanged
// sources stores the same items, scores and clusters.
func (p *Pipeline) Analyze(ctx context.Context, start, end time.Time) (*Result, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid window: end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	began := time.Now()
	res := &Result{
		RunID: uuid.NewString(),
		Start: start.UTC(),
		End:   end.UTC(),
	}
	log := p.logger.With(zap.String("run", res.RunID))
	log.Info("analysis started", zap.Time("start", res.Start), zap.Time("end", res.End))

	fetched := p.fetcher.Fetch(ctx, start, end)
	res.Fetched = fetched.Counts
	if len(fetched.Errors) > 0 {
		res.SourceErrors = make(map[models.SourceType]string, len(fetched.Errors))
		for src, err := range fetched.Errors {
			res.SourceErrors[src] = err.Error()
		}
	}
	if fetched.AllFailed() {
		res.Duration = time.Since(began)
		p.observe(res, true)
		log.Error("analysis failed", zap.Error(fetched.Err()))
		return res, fmt.Errorf("%w: %w", ErrAllSourcesFailed, fetched.Err())
	}

	items, skipped, err := p.prepare(ctx, fetched.Items)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped

	// Everything below works on the complete batch.
	clusters := p.clusterer.Cluster(items)
	p.scorer.ScoreBatch(items, end)
	cluster.Rescore(clusters, items)
	query.LinkRelated(items, query.DefaultWindow, query.MinSharedConcepts)
	res.Items = items
	res.Clusters = clusters

	if err := p.persist(ctx, log, items, clusters); err != nil {
		res.Duration = time.Since(began)
		p.observe(res, true)
		return res, err
	}

	res.Duration = time.Since(began)
	p.observe(res, false)
	p.last = res
	log.Info("analysis finished",
		zap.Int("items", len(items)),
		zap.Int("clusters", len(clusters)),
		zap.Int("skipped", skipped),
		zap.Int("failed_sources", len(res.SourceErrors)),
		zap.Duration("took", res.Duration))
	return res, nil
}

type outcome struct {
	item models.TimelineItem
	err  error
}

// prepare normalizes and enriches raw items on a bounded pool and waits for all
// of them. Malformed items are counted and dropped. The returned batch is
// deduplicated by id and ordered newest first.
func (p *Pipeline) prepare(ctx context.Context, raws []models.RawItem) ([]models.TimelineItem, int, error) {
	if len(raws) == 0 {
		return nil, 0, nil
	}
	pool, err := ants.NewPool(p.itemWorkers)
	if err != nil {
		return nil, 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]outcome, len(raws))
	var wg sync.WaitGroup
	for i := range raws {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = p.process(ctx, raws[i])
		}); err != nil {
			wg.Done()
			outcomes[i] = outcome{err: fmt.Errorf("submit: %w", err)}
		}
	}
	wg.Wait()

	byID := make(map[string]int, len(outcomes))
	items := make([]models.TimelineItem, 0, len(outcomes))
	skipped := 0
	for i, o := range outcomes {
		if o.err != nil {
			skipped++
			p.logger.Warn("skipping item",
				zap.String("source", string(raws[i].Source)),
				zap.String("native_id", raws[i].NativeID),
				zap.Error(o.err))
			continue
		}
		if j, ok := byID[o.item.ID]; ok {
			if newerRevision(o.item, items[j]) {
				items[j] = o.item
			}
			continue
		}
		byID[o.item.ID] = len(items)
		items = append(items, o.item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].ID < items[j].ID
	})
	return items, skipped, nil
}

func (p *Pipeline) process(ctx context.Context, raw models.RawItem) outcome {
	item, err := p.normalizer.Normalize(raw)
	if err != nil {
		return outcome{err: err}
	}
	if err := p.extractor.Enrich(ctx, &item); err != nil {
		return outcome{err: err}
	}
	return outcome{item: item}
}

// newerRevision picks between two revisions of one item by modification time,
// then by content so the choice does not depend on fetch order.
func newerRevision(a, b models.TimelineItem) bool {
	am, bm := a.Timestamp, b.Timestamp
	if a.LastModified != nil {
		am = *a.LastModified
	}
	if b.LastModified != nil {
		bm = *b.LastModified
	}
	if !am.Equal(bm) {
		return am.After(bm)
	}
	return a.Content > b.Content
}

// persist stores the batch, refreshes the full-text index and swaps the cluster
// set. An empty batch leaves the stored clusters alone.
func (p *Pipeline) persist(ctx context.Context, log *zap.Logger, items []models.TimelineItem, clusters []models.ConceptCluster) error {
	if len(items) == 0 {
		log.Info("nothing to store")
		return nil
	}
	if err := p.store.Upsert(ctx, items); err != nil {
		return fmt.Errorf("store items: %w", err)
	}
	if p.index != nil {
		if err := p.index.Index(ctx, items); err != nil {
			// The store is authoritative; the index catches up on the next run.
			log.Error("full-text indexing failed", zap.Error(err))
		}
	}
	if len(clusters) == 0 {
		log.Info("batch produced no clusters, keeping stored clusters", zap.Int("items", len(items)))
		return nil
	}
	if err := p.store.ReplaceClusters(ctx, clusters); err != nil {
		return fmt.Errorf("replace clusters: %w", err)
	}
	return nil
}

func (p *Pipeline) observe(res *Result, failed bool) {
	if p.metrics == nil {
		return
	}
	run := metrics.Run{
		Duration: res.Duration,
		Failed:   failed,
		Fetched:  make(map[string]int, len(res.Fetched)),
		Skipped:  res.Skipped,
		Items:    len(res.Items),
		Clusters: len(res.Clusters),
	}
	for src, n := range res.Fetched {
		run.Fetched[string(src)] = n
	}
	if len(res.SourceErrors) > 0 {
		run.SourceErrors = make(map[string]string, len(res.SourceErrors))
		for src, msg := range res.SourceErrors {
			run.SourceErrors[string(src)] = msg
		}
	}
	p.metrics.ObserveRun(run)
}
