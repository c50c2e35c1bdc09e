// Package scoring rates timeline items by importance relative to the batch they
// were analyzed with.
package scoring

import (
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/pkg/utils"
)

type weightedSignal struct {
	signal Signal
	weight float64
}

// Scorer combines weighted signals into a score in [0,1].
type Scorer struct {
	cfg     Config
	signals []weightedSignal
	logger  *zap.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// New returns a Scorer for cfg.
func New(cfg Config, opts ...Option) *Scorer {
	s := &Scorer{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.signals = []weightedSignal{
		{RecencySignal{HalfLife: cfg.HalfLife}, cfg.Weights.Recency},
		{SourceSignal{Weights: cfg.SourceWeights}, cfg.Weights.Source},
		{LengthSignal{Cap: cfg.LengthCap}, cfg.Weights.Length},
		{CrossRefSignal{}, cfg.Weights.CrossRef},
	}
	return s
}

// ScoreBatch sets ImportanceScore on every item. The weighted signal sums are
// min-max normalized across the batch; when they are all equal, as for a single
// item, every item keeps that shared raw value instead.
//
// now anchors the recency signal. Passing the end of the analyzed window keeps
// repeated runs over the same window identical.
func (s *Scorer) ScoreBatch(items []models.TimelineItem, now time.Time) {
	if len(items) == 0 {
		return
	}
	raw := s.raw(items, now)
	utils.MinMaxNormalize(raw, raw[0])
	for i := range items {
		items[i].ImportanceScore = raw[i]
	}
	s.logger.Debug("batch scored", zap.Int("items", len(items)), zap.Time("now", now))
}

// Score returns the normalized score item would get within batch. The item is
// matched by id and added to the batch when absent.
func (s *Scorer) Score(item models.TimelineItem, batch []models.TimelineItem, now time.Time) float64 {
	scored := make([]models.TimelineItem, 0, len(batch)+1)
	idx := -1
	for i, it := range batch {
		if it.ID == item.ID {
			idx = i
			it = item
		}
		scored = append(scored, it)
	}
	if idx < 0 {
		idx = len(scored)
		scored = append(scored, item)
	}
	s.ScoreBatch(scored, now)
	return scored[idx].ImportanceScore
}

// Breakdown returns each signal's value for item i of the batch.
func (s *Scorer) Breakdown(items []models.TimelineItem, i int, now time.Time) map[string]float64 {
	bc := newBatchContext(items, now, s.cfg.CrossRefWindow)
	out := make(map[string]float64, len(s.signals))
	for _, ws := range s.signals {
		out[ws.signal.Name()] = ws.signal.Value(i, bc)
	}
	return out
}

func (s *Scorer) raw(items []models.TimelineItem, now time.Time) []float64 {
	bc := newBatchContext(items, now, s.cfg.CrossRefWindow)
	total := s.cfg.Weights.sum()
	out := make([]float64, len(items))
	for i := range items {
		var sum float64
		for _, ws := range s.signals {
			if ws.weight == 0 {
				continue
			}
			sum += ws.weight * utils.Clamp01(ws.signal.Value(i, bc))
		}
		if total > 0 {
			sum /= total
		}
		out[i] = sum
	}
	return out
}
