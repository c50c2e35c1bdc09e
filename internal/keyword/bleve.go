package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/mindline/internal/models"
)

const docType = "timeline_item"

// document is the indexed projection of a timeline item.
type document struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Concepts  []string  `json:"concepts"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Type lets bleve pick the timeline item mapping.
func (document) Type() string { return docType }

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

var _ Index = (*BleveIndex)(nil)

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates
// an in-memory index. If the mapping changes, remove the index directory; the
// next analysis re-indexes every item it stores.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *bleve.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	text := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so "bayes" does not become "bay".
	text.Analyzer = standard.Name
	exact := bleve.NewKeywordFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("concepts", exact)
	doc.AddFieldMappingsAt("source", exact)
	doc.AddFieldMappingsAt("timestamp", bleve.NewDateTimeFieldMapping())

	im.AddDocumentMapping(docType, doc)
	im.DefaultMapping = doc
	return im
}

// Index adds or replaces items in one batch.
func (b *BleveIndex) Index(ctx context.Context, items []models.TimelineItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := &items[i]
		doc := document{
			Title:     it.Title,
			Content:   it.Content,
			Concepts:  it.ExtractedConcepts,
			Source:    string(it.SourceType),
			Timestamp: it.Timestamp.UTC(),
		}
		if err := batch.Index(it.ID, doc); err != nil {
			return fmt.Errorf("failed to index %s: %w", it.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search returns up to limit items matching query, best first.
// Title and content matches are added together with the title weighted by
// opts.TitleBoost; an exact concept match counts like a title match.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Hit, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	titleBoost := opts.TitleBoost
	if titleBoost <= 1 {
		titleBoost = 1
	}

	should := []blevequery.Query{
		b.fieldQuery(query, terms, "title", opts.Fuzziness, titleBoost),
		b.fieldQuery(query, terms, "content", opts.Fuzziness, 1),
	}
	for _, t := range terms {
		cq := bleve.NewTermQuery(t)
		cq.SetField("concepts")
		cq.SetBoost(titleBoost)
		should = append(should, cq)
	}
	match := bleve.NewDisjunctionQuery(should...)

	var q blevequery.Query = match
	if filters := filterQueries(opts); len(filters) > 0 {
		q = bleve.NewConjunctionQuery(append(filters, match)...)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Hit, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = Hit{ID: hit.ID, Score: hit.Score}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// fieldQuery matches query against one text field, fuzzily per term when
// fuzziness > 0.
func (b *BleveIndex) fieldQuery(query string, terms []string, field string, fuzziness int, boost float64) blevequery.Query {
	if fuzziness <= 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func filterQueries(opts *SearchOptions) []blevequery.Query {
	var out []blevequery.Query
	if len(opts.Sources) > 0 {
		sources := make([]blevequery.Query, len(opts.Sources))
		for i, s := range opts.Sources {
			tq := bleve.NewTermQuery(string(s))
			tq.SetField("source")
			sources[i] = tq
		}
		out = append(out, bleve.NewDisjunctionQuery(sources...))
	}
	if !opts.Start.IsZero() || !opts.End.IsZero() {
		inclusive := true
		dq := bleve.NewDateRangeInclusiveQuery(opts.Start.UTC(), opts.End.UTC(), &inclusive, &inclusive)
		dq.SetField("timestamp")
		out = append(out, dq)
	}
	return out
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Delete removes an item from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of indexed items.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
