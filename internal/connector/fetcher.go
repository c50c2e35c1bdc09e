package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/mindline/internal/models"
)

// FetchResult is the outcome of one fetch phase. A source that returned items
// together with an error appears both in Succeeded and in Errors.
type FetchResult struct {
	Items     []models.RawItem
	Counts    map[models.SourceType]int
	Errors    map[models.SourceType]error
	Succeeded []models.SourceType
}

// Failed returns the sources that reported an error, sorted.
func (r *FetchResult) Failed() []models.SourceType {
	out := make([]models.SourceType, 0, len(r.Errors))
	for s := range r.Errors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllFailed reports whether no source produced anything usable.
func (r *FetchResult) AllFailed() bool {
	return len(r.Succeeded) == 0 && len(r.Errors) > 0
}

// Err joins every per-source error, or returns nil.
func (r *FetchResult) Err() error {
	var errs []error
	for _, s := range r.Failed() {
		errs = append(errs, r.Errors[s])
	}
	return errors.Join(errs...)
}

// Fetcher runs connectors concurrently on a bounded pool.
type Fetcher struct {
	connectors []Connector
	workers    int
	timeout    time.Duration
	logger     *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithWorkers bounds how many connectors run at once.
func WithWorkers(n int) FetcherOption {
	return func(f *Fetcher) { f.workers = n }
}

// WithSourceTimeout sets the deadline applied to each connector call.
func WithSourceTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher returns a fetcher over connectors.
func NewFetcher(connectors []Connector, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{connectors: connectors, workers: len(connectors), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	if f.workers < 1 {
		f.workers = 1
	}
	return f
}

// Sources lists the source types the fetcher drives.
func (f *Fetcher) Sources() []models.SourceType {
	out := make([]models.SourceType, len(f.connectors))
	for i, c := range f.connectors {
		out[i] = c.Source()
	}
	return out
}

// abandonGrace is how long a cancelled connector may take to hand back partial data.
const abandonGrace = 250 * time.Millisecond

type sourceOutcome struct {
	items []models.RawItem
	err   error
}

// Fetch calls every connector for [start, end]. One failing or slow connector
// never fails the others; its error is recorded in the result.
func (f *Fetcher) Fetch(ctx context.Context, start, end time.Time) *FetchResult {
	outcomes := make([]sourceOutcome, len(f.connectors))

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, c := range f.connectors {
		g.Go(func() error {
			outcomes[i] = f.fetchOne(ctx, c, start, end)
			return nil
		})
	}
	_ = g.Wait()

	res := &FetchResult{
		Counts: make(map[models.SourceType]int),
		Errors: make(map[models.SourceType]error),
	}
	for i, c := range f.connectors {
		src := c.Source()
		out := outcomes[i]
		for _, item := range out.items {
			if item.Source == "" {
				item.Source = src
			}
			res.Items = append(res.Items, item)
		}
		res.Counts[src] += len(out.items)
		if out.err != nil {
			res.Errors[src] = out.err
			f.logger.Warn("source fetch failed",
				zap.String("source", string(src)),
				zap.Int("items", len(out.items)),
				zap.Bool("auth", IsAuthentication(out.err)),
				zap.Error(out.err))
		}
		if out.err == nil || len(out.items) > 0 {
			res.Succeeded = append(res.Succeeded, src)
		}
	}
	return res
}

// fetchOne calls c under the per-source deadline. A connector that ignores
// cancellation is abandoned when the deadline passes.
func (f *Fetcher) fetchOne(ctx context.Context, c Connector, start, end time.Time) sourceOutcome {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	done := make(chan sourceOutcome, 1)
	began := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sourceOutcome{err: fmt.Errorf("%s: connector panicked: %v", c.Source(), r)}
			}
		}()
		items, err := c.Fetch(ctx, start, end)
		done <- sourceOutcome{items: items, err: err}
	}()

	select {
	case out := <-done:
		f.logger.Debug("source fetched",
			zap.String("source", string(c.Source())),
			zap.Int("items", len(out.items)),
			zap.Duration("took", time.Since(began)))
		return out
	case <-ctx.Done():
		// Cooperative connectors return their partial items right after cancellation.
		select {
		case out := <-done:
			return out
		case <-time.After(abandonGrace):
		}
		return sourceOutcome{err: fmt.Errorf("%s: fetch abandoned: %w", c.Source(), context.Cause(ctx))}
	}
}
