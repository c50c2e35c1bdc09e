package scoring

import (
	"time"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/models"
)

// Config holds the parameters of the importance score.
type Config struct {
	HalfLife       time.Duration
	LengthCap      int
	CrossRefWindow time.Duration
	Weights        Weights
	SourceWeights  map[models.SourceType]float64
}

// Weights weighs the signals against each other. They need not sum to one.
type Weights struct {
	Recency  float64
	Source   float64
	Length   float64
	CrossRef float64
}

func (w Weights) sum() float64 { return w.Recency + w.Source + w.Length + w.CrossRef }

// DefaultConfig returns a 7 day half-life, a 14 day cross-reference window and
// source weights ordered meeting > email > note > screenshot.
func DefaultConfig() Config {
	return Config{
		HalfLife:       7 * 24 * time.Hour,
		LengthCap:      5000,
		CrossRefWindow: 14 * 24 * time.Hour,
		Weights:        Weights{Recency: 0.35, Source: 0.25, Length: 0.15, CrossRef: 0.25},
		SourceWeights: map[models.SourceType]float64{
			models.SourceMeeting:    1.0,
			models.SourceEmail:      0.8,
			models.SourceNote:       0.6,
			models.SourceScreenshot: 0.4,
		},
	}
}

// ConfigFrom converts the scoring section of the application config.
func ConfigFrom(c config.ScoringConfig) Config {
	out := DefaultConfig()
	if c.HalfLife > 0 {
		out.HalfLife = c.HalfLife
	}
	if c.LengthCap > 0 {
		out.LengthCap = c.LengthCap
	}
	if c.CrossRefWindow > 0 {
		out.CrossRefWindow = c.CrossRefWindow
	}
	if c.Weights.Sum() > 0 {
		out.Weights = Weights{
			Recency:  c.Weights.Recency,
			Source:   c.Weights.Source,
			Length:   c.Weights.Length,
			CrossRef: c.Weights.CrossRef,
		}
	}
	for name, w := range c.SourceWeights {
		out.SourceWeights[models.SourceType(name)] = w
	}
	return out
}
