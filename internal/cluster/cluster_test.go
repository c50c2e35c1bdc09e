package cluster

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/models"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func item(id string, score float64, concepts ...string) models.TimelineItem {
	return models.TimelineItem{
		ID:                id,
		Timestamp:         base.Add(time.Duration(len(id)) * time.Hour),
		ExtractedConcepts: concepts,
		ImportanceScore:   score,
	}
}

func TestCluster_invoiceExample(t *testing.T) {
	batch := []models.TimelineItem{
		item("S1", 0.2, "invoice"),
		item("S2", 0.4, "invoice"),
		item("S3", 0.6, "invoice"),
		item("E1", 0.8, "invoice", "vendor"),
	}
	clusters := New().Cluster(batch)
	require.Len(t, clusters, 2)

	inv := clusters[0]
	assert.Equal(t, "invoice", inv.Name)
	assert.Equal(t, []string{"invoice"}, inv.Concepts)
	assert.Equal(t, []string{"E1", "S1", "S2", "S3"}, inv.TimelineItemIDs)
	assert.InDelta(t, 0.5, inv.ImportanceScore, 1e-9)

	other := clusters[1]
	assert.Equal(t, OtherID, other.ID)
	assert.Equal(t, OtherName, other.Name)
	assert.Equal(t, []string{"vendor"}, other.Concepts)
	assert.Equal(t, []string{"E1"}, other.TimelineItemIDs)
}

func TestCluster_degenerateInput(t *testing.T) {
	assert.Empty(t, New().Cluster(nil))
	assert.Empty(t, New().Cluster([]models.TimelineItem{item("a", 0, "solo"), item("b", 0, "solo")}))
	assert.Empty(t, New().Cluster([]models.TimelineItem{item("a", 0)}))
}

func TestCluster_componentsAndNaming(t *testing.T) {
	batch := []models.TimelineItem{
		item("a", 0.9, "budget", "roadmap"),
		item("b", 0.9, "roadmap", "hiring"),
		item("c", 0.9, "roadmap", "budget"),
		item("d", 0.9, "hiring"),
		item("e", 0.1, "garden", "tomato"),
		item("f", 0.1, "garden", "tomato"),
	}
	clusters := New().Cluster(batch)
	require.Len(t, clusters, 2)

	assert.Equal(t, "roadmap", clusters[0].Name, "roadmap links to both budget and hiring")
	assert.Equal(t, []string{"budget", "hiring", "roadmap"}, clusters[0].Concepts)
	assert.Equal(t, []string{"a", "b", "c", "d"}, clusters[0].TimelineItemIDs)

	assert.Equal(t, "garden", clusters[1].Name, "equal degree falls back to alphabetical order")
	assert.Equal(t, []string{"e", "f"}, clusters[1].TimelineItemIDs)
	for _, c := range clusters {
		assert.NotEmpty(t, c.TimelineItemIDs)
		assert.NotEqual(t, OtherID, c.ID)
	}
}

func TestCluster_minEdgeWeightSplitsComponents(t *testing.T) {
	batch := []models.TimelineItem{
		item("a", 0, "alpha", "beta"),
		item("b", 0, "alpha"),
		item("c", 0, "beta"),
	}
	joined := New().Cluster(batch)
	require.Len(t, joined, 1)
	assert.Equal(t, []string{"alpha", "beta"}, joined[0].Concepts)

	split := New(WithMinEdgeWeight(2)).Cluster(batch)
	require.Len(t, split, 2)
	assert.Equal(t, "alpha", split[0].Name)
	assert.Equal(t, "beta", split[1].Name)
}

func TestCluster_minClusterSizeFoldsIntoOther(t *testing.T) {
	batch := []models.TimelineItem{
		item("a", 0, "alpha", "beta"),
		item("b", 0, "alpha", "beta"),
		item("c", 0, "gamma", "delta"),
	}
	clusters := New(WithMinClusterSize(2)).Cluster(batch)
	require.Len(t, clusters, 2)
	assert.Equal(t, "alpha", clusters[0].Name)
	assert.Equal(t, OtherID, clusters[1].ID)
	assert.Equal(t, []string{"delta", "gamma"}, clusters[1].Concepts)
	assert.Equal(t, []string{"c"}, clusters[1].TimelineItemIDs)

	all := New(WithMinClusterSize(1)).Cluster(batch)
	for _, c := range all {
		assert.NotEqual(t, OtherID, c.ID)
	}
	assert.Len(t, all, 2)
}

func TestCluster_deterministicUnderShuffle(t *testing.T) {
	batch := []models.TimelineItem{
		item("a", 0.1, "invoice", "vendor", "payment"),
		item("b", 0.2, "invoice", "payment"),
		item("c", 0.3, "roadmap", "milestone"),
		item("d", 0.4, "roadmap", "milestone", "hiring"),
		item("e", 0.5, "vendor"),
		item("f", 0.6, "lunch"),
		item("g", 0.7, "lunch", "team"),
		item("h", 0.8, "team", "offsite"),
	}
	want := New().Cluster(batch)
	require.NotEmpty(t, want)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.TimelineItem(nil), batch...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		for k := range shuffled {
			cs := append([]string(nil), shuffled[k].ExtractedConcepts...)
			rng.Shuffle(len(cs), func(i, j int) { cs[i], cs[j] = cs[j], cs[i] })
			shuffled[k].ExtractedConcepts = cs
		}
		assert.Equal(t, want, New().Cluster(shuffled))
	}
}

func TestCluster_timeRangeAndIDs(t *testing.T) {
	batch := []models.TimelineItem{item("a", 0, "x", "y"), item("bbb", 0, "x", "y")}
	clusters := New().Cluster(batch)
	require.Len(t, clusters, 1)
	require.NotNil(t, clusters[0].TimeRange)
	assert.Equal(t, base.Add(time.Hour), clusters[0].TimeRange.Start)
	assert.Equal(t, base.Add(3*time.Hour), clusters[0].TimeRange.End)

	again := New().Cluster(batch)
	assert.Equal(t, clusters[0].ID, again[0].ID)
	assert.Contains(t, clusters[0].ID, "cluster:")
}

func TestRescore(t *testing.T) {
	batch := []models.TimelineItem{
		item("a", 0, "x", "y"), item("b", 0, "x", "y"),
		item("c", 0, "p", "q"), item("d", 0, "p", "q"),
	}
	clusters := New().Cluster(batch)
	require.Len(t, clusters, 2)
	assert.Equal(t, "p", clusters[0].Name, "equal scores sort by name")

	batch[0].ImportanceScore, batch[1].ImportanceScore = 1, 0.5
	Rescore(clusters, batch)
	assert.Equal(t, "x", clusters[0].Name)
	assert.InDelta(t, 0.75, clusters[0].ImportanceScore, 1e-9)
	assert.Equal(t, 0.0, clusters[1].ImportanceScore)
}
