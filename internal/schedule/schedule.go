// Package schedule triggers analysis of a trailing window, periodically on a cron
// spec or on demand.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/pipeline"
)

// DefaultWindow is the trailing window analyzed when none is configured.
const DefaultWindow = 24 * time.Hour

// Analyzer runs one analysis over [start, end].
type Analyzer interface {
	Analyze(ctx context.Context, start, end time.Time) (*pipeline.Result, error)
}

// Scheduler analyzes the trailing window on every tick of a cron spec.
type Scheduler struct {
	analyzer Analyzer
	window   time.Duration
	cron     *cron.Cron
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New returns a scheduler for spec, a standard five-field cron expression or a
// descriptor such as "@hourly" or "@every 30m". Ticks that arrive while the
// previous run is still going are skipped.
func New(spec string, window time.Duration, a Analyzer, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		analyzer: a,
		window:   window,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	logger := cronLogger{s.logger.Sugar()}
	s.cron = cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	s.cron.Schedule(sched, cron.FuncJob(s.tick))
	return s, nil
}

// Start begins ticking. Runs started by the scheduler are cancelled by Stop or
// when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Duration("window", s.window))
}

// Stop halts ticking, cancels a run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// Next returns the time of the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if _, err := Trailing(ctx, s.analyzer, s.window, s.now()); err != nil {
		s.logger.Error("scheduled analysis failed", zap.Error(err))
	}
}

// Trailing analyzes [now-window, now].
func Trailing(ctx context.Context, a Analyzer, window time.Duration, now time.Time) (*pipeline.Result, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	return a.Analyze(ctx, now.Add(-window), now)
}

// cronLogger routes cron's logging into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
