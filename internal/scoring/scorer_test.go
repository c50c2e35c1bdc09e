package scoring

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/models"
)

var now = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func mk(id string, src models.SourceType, age time.Duration, content string, concepts ...string) models.TimelineItem {
	return models.TimelineItem{
		ID:                id,
		SourceType:        src,
		Timestamp:         now.Add(-age),
		Content:           content,
		ExtractedConcepts: concepts,
	}
}

func TestScoreBatch_bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sources := models.SourceTypes
	for round := 0; round < 25; round++ {
		n := 1 + rng.Intn(30)
		items := make([]models.TimelineItem, n)
		for i := range items {
			items[i] = mk(fmt.Sprintf("i%d", i), sources[rng.Intn(len(sources))],
				time.Duration(rng.Intn(2000)-100)*time.Hour,
				strings.Repeat("w ", rng.Intn(4000)),
				fmt.Sprintf("c%d", rng.Intn(5)))
		}
		New(DefaultConfig()).ScoreBatch(items, now)
		for _, it := range items {
			assert.GreaterOrEqual(t, it.ImportanceScore, 0.0)
			assert.LessOrEqual(t, it.ImportanceScore, 1.0)
		}
	}
}

func TestScoreBatch_normalizedSpan(t *testing.T) {
	items := []models.TimelineItem{
		mk("old", models.SourceScreenshot, 60*24*time.Hour, "x"),
		mk("new", models.SourceMeeting, time.Hour, strings.Repeat("long transcript ", 200)),
		mk("mid", models.SourceNote, 5*24*time.Hour, "some note text"),
	}
	New(DefaultConfig()).ScoreBatch(items, now)
	assert.Equal(t, 0.0, items[0].ImportanceScore)
	assert.Equal(t, 1.0, items[1].ImportanceScore)
	assert.Greater(t, items[2].ImportanceScore, 0.0)
	assert.Less(t, items[2].ImportanceScore, 1.0)
}

func TestScoreBatch_degenerate(t *testing.T) {
	single := []models.TimelineItem{mk("a", models.SourceNote, 0, "hello")}
	New(DefaultConfig()).ScoreBatch(single, now)
	s := single[0].ImportanceScore
	assert.Greater(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)

	uniform := []models.TimelineItem{
		mk("a", models.SourceEmail, time.Hour, "same"),
		mk("b", models.SourceEmail, time.Hour, "same"),
	}
	New(DefaultConfig()).ScoreBatch(uniform, now)
	assert.Equal(t, uniform[0].ImportanceScore, uniform[1].ImportanceScore)
	assert.False(t, math.IsNaN(uniform[0].ImportanceScore))

	New(DefaultConfig()).ScoreBatch(nil, now)
}

func TestScoreBatch_idempotent(t *testing.T) {
	build := func() []models.TimelineItem {
		return []models.TimelineItem{
			mk("a", models.SourceEmail, 2*time.Hour, "invoice from vendor", "invoice", "vendor"),
			mk("b", models.SourceScreenshot, 30*time.Hour, "invoice total", "invoice"),
			mk("c", models.SourceNote, 90*24*time.Hour, "garden", "garden"),
		}
	}
	a, b := build(), build()
	New(DefaultConfig()).ScoreBatch(a, now)
	New(DefaultConfig()).ScoreBatch(b, now)
	assert.Equal(t, a, b)
}

func TestSignals(t *testing.T) {
	items := []models.TimelineItem{
		mk("a", models.SourceMeeting, 7*24*time.Hour, "abc", "invoice"),
		mk("b", models.SourceScreenshot, -time.Hour, "", "invoice"),
		mk("c", models.SourceNote, 40*24*time.Hour, strings.Repeat("x", 10000), "invoice"),
	}
	s := New(DefaultConfig())

	a := s.Breakdown(items, 0, now)
	assert.InDelta(t, 0.5, a["recency"], 1e-9, "one half-life old")
	assert.Equal(t, 1.0, a["source"])
	assert.InDelta(t, 0.5, a["crossref"], 1e-9, "b is within 14 days, c is not")

	b := s.Breakdown(items, 1, now)
	assert.Equal(t, 1.0, b["recency"], "future timestamps are fresh")
	assert.InDelta(t, 0.4, b["source"], 1e-9)
	assert.Equal(t, 0.0, b["length"])

	c := s.Breakdown(items, 2, now)
	assert.Equal(t, 1.0, c["length"], "length saturates at the cap")
	assert.Equal(t, 0.0, c["crossref"])
}

func TestSourceOrdering(t *testing.T) {
	var items []models.TimelineItem
	for _, src := range []models.SourceType{models.SourceScreenshot, models.SourceNote, models.SourceEmail, models.SourceMeeting} {
		items = append(items, mk(string(src), src, time.Hour, "same content"))
	}
	New(DefaultConfig()).ScoreBatch(items, now)
	for i := 1; i < len(items); i++ {
		assert.Greater(t, items[i].ImportanceScore, items[i-1].ImportanceScore)
	}
}

func TestScore_single(t *testing.T) {
	batch := []models.TimelineItem{
		mk("a", models.SourceMeeting, time.Hour, strings.Repeat("y", 3000)),
		mk("b", models.SourceScreenshot, 50*24*time.Hour, "z"),
	}
	s := New(DefaultConfig())
	assert.Equal(t, 1.0, s.Score(batch[0], batch, now))
	assert.Equal(t, 0.0, s.Score(batch[1], batch, now))
	got := s.Score(mk("new", models.SourceNote, 24*time.Hour, "note"), batch, now)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.SourceWeights["screenshot"] = 2
	cfg.Scoring.HalfLife = 24 * time.Hour
	sc := ConfigFrom(cfg.Scoring)
	require.Equal(t, 24*time.Hour, sc.HalfLife)
	assert.Equal(t, 2.0, sc.SourceWeights[models.SourceScreenshot])
	assert.Equal(t, 1.0, sc.SourceWeights[models.SourceMeeting])
}
