// Package cluster groups concepts and the items that carry them into named
// clusters using a concept co-occurrence graph.
package cluster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/models"
)

// OtherID and OtherName identify the catch-all cluster.
const (
	OtherID   = "cluster:other"
	OtherName = "other"
)

// Engine builds concept clusters for a batch of items.
type Engine struct {
	minEdgeWeight  int
	minClusterSize int
	logger         *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMinEdgeWeight drops co-occurrence edges shared by fewer than n items.
func WithMinEdgeWeight(n int) Option {
	return func(e *Engine) { e.minEdgeWeight = n }
}

// WithMinClusterSize folds clusters with fewer than n items into other.
func WithMinClusterSize(n int) Option {
	return func(e *Engine) { e.minClusterSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New returns an Engine with a minimum edge weight of 1 and a minimum cluster size of 2.
func New(opts ...Option) *Engine {
	e := &Engine{minEdgeWeight: 1, minClusterSize: 2, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.minEdgeWeight < 1 {
		e.minEdgeWeight = 1
	}
	if e.minClusterSize < 1 {
		e.minClusterSize = 1
	}
	return e
}

// Cluster groups the batch's concepts into clusters. The result depends only on
// the set of items and their concepts, never on their order. A batch with fewer
// than two distinct concepts yields no clusters.
//
// Concepts carried by fewer than the minimum cluster size of items cannot form a
// cluster of their own and go to the other cluster, as do components whose
// items are too few.
func (e *Engine) Cluster(batch []models.TimelineItem) []models.ConceptCluster {
	g := newGraph(batch)
	if len(g.concepts) < 2 {
		e.logger.Debug("too few concepts to cluster", zap.Int("concepts", len(g.concepts)))
		return nil
	}

	var eligible, rest []string
	for _, c := range g.concepts {
		if len(g.support[c]) >= e.minClusterSize {
			eligible = append(eligible, c)
		} else {
			rest = append(rest, c)
		}
	}

	var clusters []models.ConceptCluster
	for _, comp := range g.components(eligible, e.minEdgeWeight) {
		items := g.itemsOf(comp)
		if len(items) < e.minClusterSize {
			rest = append(rest, comp...)
			continue
		}
		name := g.representative(comp, e.minEdgeWeight)
		clusters = append(clusters, g.build(clusterID(comp), name, comp, items))
	}

	if len(rest) > 0 {
		sort.Strings(rest)
		clusters = append(clusters, g.build(OtherID, OtherName, rest, g.itemsOf(rest)))
	}
	sortClusters(clusters)

	e.logger.Debug("clusters built",
		zap.Int("items", len(batch)),
		zap.Int("concepts", len(g.concepts)),
		zap.Int("clusters", len(clusters)))
	return clusters
}

// Rescore sets every cluster's importance to the mean score of its member items
// and re-sorts the clusters.
func Rescore(clusters []models.ConceptCluster, items []models.TimelineItem) {
	scores := make(map[string]float64, len(items))
	for _, it := range items {
		scores[it.ID] = it.ImportanceScore
	}
	for i := range clusters {
		clusters[i].ImportanceScore = meanScore(clusters[i].TimelineItemIDs, scores)
	}
	sortClusters(clusters)
}

func meanScore(ids []string, scores map[string]float64) float64 {
	if len(ids) == 0 {
		return 0
	}
	var sum float64
	for _, id := range ids {
		sum += scores[id]
	}
	return sum / float64(len(ids))
}

// sortClusters orders by importance, then name, with other always last.
func sortClusters(clusters []models.ConceptCluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if (a.ID == OtherID) != (b.ID == OtherID) {
			return b.ID == OtherID
		}
		if a.ImportanceScore != b.ImportanceScore {
			return a.ImportanceScore > b.ImportanceScore
		}
		return a.Name < b.Name
	})
}

func clusterID(concepts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(concepts, "\x00")))
	return "cluster:" + hex.EncodeToString(sum[:8])
}

func describe(name string, concepts []string, items int) string {
	const shown = 5
	others := make([]string, 0, shown)
	for _, c := range concepts {
		if c != name && len(others) < shown {
			others = append(others, c)
		}
	}
	noun := "items"
	if items == 1 {
		noun = "item"
	}
	if len(others) == 0 {
		return fmt.Sprintf("%d %s about %s", items, noun, name)
	}
	return fmt.Sprintf("%d %s about %s, related to %s", items, noun, name, strings.Join(others, ", "))
}

func timeRange(items []*models.TimelineItem) *models.TimeRange {
	if len(items) == 0 {
		return nil
	}
	var lo, hi time.Time
	for i, it := range items {
		if i == 0 || it.Timestamp.Before(lo) {
			lo = it.Timestamp
		}
		if i == 0 || it.Timestamp.After(hi) {
			hi = it.Timestamp
		}
	}
	return &models.TimeRange{Start: lo, End: hi}
}
