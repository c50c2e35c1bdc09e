package cluster

import (
	"sort"

	"github.com/hyperjump/mindline/internal/models"
)

// graph is the concept co-occurrence graph of a batch. All collections are
// kept sorted so traversal order never depends on input order.
type graph struct {
	concepts []string
	support  map[string][]string       // concept -> sorted item ids
	weights  map[string]map[string]int // concept -> concept -> shared items
	items    map[string]*models.TimelineItem
	scores   map[string]float64
}

func newGraph(batch []models.TimelineItem) *graph {
	g := &graph{
		support: make(map[string][]string),
		weights: make(map[string]map[string]int),
		items:   make(map[string]*models.TimelineItem, len(batch)),
		scores:  make(map[string]float64, len(batch)),
	}

	// Duplicate ids are merged: concepts are united and the newest copy (highest
	// score on equal timestamps) represents the item, whatever the input order.
	byID := make(map[string][]string, len(batch))
	for i := range batch {
		it := &batch[i]
		if prev, ok := g.items[it.ID]; !ok || newer(it, prev) {
			g.items[it.ID] = it
			g.scores[it.ID] = it.ImportanceScore
		}
		byID[it.ID] = distinct(append(byID[it.ID], it.ExtractedConcepts...))
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cs := byID[id]
		for i, a := range cs {
			g.support[a] = append(g.support[a], id)
			for _, b := range cs[i+1:] {
				g.addEdge(a, b)
			}
		}
	}
	for c := range g.support {
		g.concepts = append(g.concepts, c)
	}
	sort.Strings(g.concepts)
	return g
}

func (g *graph) addEdge(a, b string) {
	if g.weights[a] == nil {
		g.weights[a] = make(map[string]int)
	}
	if g.weights[b] == nil {
		g.weights[b] = make(map[string]int)
	}
	g.weights[a][b]++
	g.weights[b][a]++
}

// neighbors returns the sorted concepts joined to c by an edge of at least
// minWeight whose other end is in allowed.
func (g *graph) neighbors(c string, minWeight int, allowed map[string]bool) []string {
	var out []string
	for n, w := range g.weights[c] {
		if w >= minWeight && allowed[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// components returns the connected components of the subgraph induced by
// nodes, each sorted, in order of their smallest concept.
func (g *graph) components(nodes []string, minWeight int) [][]string {
	allowed := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		allowed[n] = true
	}
	seen := make(map[string]bool, len(nodes))
	var out [][]string
	for _, start := range nodes {
		if seen[start] {
			continue
		}
		seen[start] = true
		comp := []string{start}
		queue := []string{start}
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			for _, n := range g.neighbors(c, minWeight, allowed) {
				if !seen[n] {
					seen[n] = true
					comp = append(comp, n)
					queue = append(queue, n)
				}
			}
		}
		sort.Strings(comp)
		out = append(out, comp)
	}
	return out
}

// representative returns the concept with the most in-component neighbors,
// alphabetically first on ties.
func (g *graph) representative(comp []string, minWeight int) string {
	in := make(map[string]bool, len(comp))
	for _, c := range comp {
		in[c] = true
	}
	best, bestDeg := "", -1
	for _, c := range comp {
		if d := len(g.neighbors(c, minWeight, in)); d > bestDeg {
			best, bestDeg = c, d
		}
	}
	return best
}

// itemsOf returns the sorted ids of items carrying any of concepts.
func (g *graph) itemsOf(concepts []string) []string {
	set := make(map[string]bool)
	for _, c := range concepts {
		for _, id := range g.support[c] {
			set[id] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *graph) build(id, name string, concepts, itemIDs []string) models.ConceptCluster {
	members := make([]*models.TimelineItem, 0, len(itemIDs))
	for _, iid := range itemIDs {
		members = append(members, g.items[iid])
	}
	return models.ConceptCluster{
		ID:              id,
		Name:            name,
		Description:     describe(name, concepts, len(itemIDs)),
		Concepts:        append([]string(nil), concepts...),
		TimelineItemIDs: itemIDs,
		ImportanceScore: meanScore(itemIDs, g.scores),
		TimeRange:       timeRange(members),
	}
}

func distinct(in []string) []string {
	set := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c != "" && !set[c] {
			set[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func newer(a, b *models.TimelineItem) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ImportanceScore > b.ImportanceScore
}
