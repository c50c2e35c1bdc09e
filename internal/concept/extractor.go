// Package concept derives ranked concepts and a category label from timeline items.
package concept

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/pkg/utils"
)

// Extraction is the result of analyzing one item.
type Extraction struct {
	Concepts []string
	Category models.Category
	// Counts holds the frequency of every surviving concept, not only the ranked ones.
	Counts map[string]int
}

// Extractor tokenizes item text, ranks concepts and assigns a category.
// It looks at one item at a time and never at the rest of the batch.
type Extractor struct {
	minTokenLength int
	maxConcepts    int
	stopwords      Stopwords
	classifier     Classifier
	summarizer     *Summarizer
	logger         *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinTokenLength drops tokens shorter than n runes.
func WithMinTokenLength(n int) Option {
	return func(e *Extractor) { e.minTokenLength = n }
}

// WithMaxConcepts keeps at most n ranked concepts per item.
func WithMaxConcepts(n int) Option {
	return func(e *Extractor) { e.maxConcepts = n }
}

// WithStopwords replaces the stopword set.
func WithStopwords(s Stopwords) Option {
	return func(e *Extractor) { e.stopwords = s }
}

// WithClassifier replaces the keyword classifier.
func WithClassifier(c Classifier) Option {
	return func(e *Extractor) { e.classifier = c }
}

// WithSummarizer fills item summaries during Enrich.
func WithSummarizer(s *Summarizer) Option {
	return func(e *Extractor) { e.summarizer = s }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// New returns an Extractor with a keyword classifier and the default stopwords.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		minTokenLength: 3,
		maxConcepts:    15,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.stopwords == nil {
		e.stopwords = DefaultStopwords()
	}
	if e.classifier == nil {
		e.classifier = NewKeywordClassifier()
	}
	return e
}

// Terms counts the normalized, non-stopword terms of text.
func (e *Extractor) Terms(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if utf8.RuneCountInString(tok) < e.minTokenLength || e.stopwords.Contains(strings.ToLower(tok)) {
			continue
		}
		c := Normalize(tok)
		if utf8.RuneCountInString(c) < e.minTokenLength || e.stopwords.Contains(c) {
			continue
		}
		counts[c]++
	}
	return counts
}

// NormalizeQuery maps user supplied words onto concept identities so they can be
// matched against extracted concepts.
func (e *Extractor) NormalizeQuery(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		c := Normalize(w)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Rank orders concepts by descending count, alphabetically on ties, and keeps at most limit.
func Rank(counts map[string]int, limit int) []string {
	out := make([]string, 0, len(counts))
	for c := range counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Extract returns the ranked concepts and the category of item.
func (e *Extractor) Extract(ctx context.Context, item *models.TimelineItem) (Extraction, error) {
	text := item.Content
	if !titleFromContent(item.Title, item.Content) {
		text = item.Title + "\n" + item.Content
	}
	counts := e.Terms(text)
	concepts := Rank(counts, e.maxConcepts)

	cat, err := e.classifier.Classify(ctx, Document{
		Source:  item.SourceType,
		Title:   item.Title,
		Content: item.Content,
		Terms:   counts,
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to classify %s: %w", item.ID, err)
	}
	return Extraction{Concepts: concepts, Category: cat, Counts: counts}, nil
}

// Enrich runs Extract and stores the result on item. When a summarizer is
// configured it also fills the summary; summary failures are logged, not returned.
func (e *Extractor) Enrich(ctx context.Context, item *models.TimelineItem) error {
	ex, err := e.Extract(ctx, item)
	if err != nil {
		return err
	}
	item.ExtractedConcepts = ex.Concepts
	item.ConceptCategories = []models.Category{ex.Category}

	if e.summarizer != nil && item.Summary == "" {
		summary, err := e.summarizer.Summarize(ctx, item.Title, item.Content)
		if err != nil {
			e.logger.Warn("summary failed", zap.String("id", item.ID), zap.Error(err))
		} else {
			item.Summary = summary
		}
	}
	e.logger.Debug("item enriched",
		zap.String("id", item.ID),
		zap.Strings("concepts", item.ExtractedConcepts),
		zap.String("category", string(ex.Category)))
	return nil
}

// titleFromContent reports whether title was derived from the first content line,
// in which case counting it again would double its words.
func titleFromContent(title, content string) bool {
	if title == "" {
		return true
	}
	return strings.HasPrefix(utils.FirstLine(content), strings.TrimSuffix(title, "..."))
}
