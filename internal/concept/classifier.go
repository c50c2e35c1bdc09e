package concept

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/llm"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/pkg/utils"
)

// Document is the classifier's view of an item.
type Document struct {
	Source  models.SourceType
	Title   string
	Content string
	// Terms are the item's normalized concept counts.
	Terms map[string]int
}

// Classifier assigns exactly one category from the closed set.
type Classifier interface {
	Classify(ctx context.Context, doc Document) (models.Category, error)
}

// DefaultCategoryKeywords maps categories to the words that signal them.
var DefaultCategoryKeywords = map[models.Category][]string{
	models.CategoryProject:       {"project", "initiative", "program", "development", "implementation"},
	models.CategoryMeeting:       {"meeting", "discussion", "call", "conference", "presentation"},
	models.CategoryIdea:          {"idea", "concept", "proposal", "suggestion", "innovation"},
	models.CategoryTask:          {"task", "todo", "action", "assignment", "deadline"},
	models.CategoryCommunication: {"email", "message", "response", "question", "answer"},
	models.CategoryResearch:      {"research", "analysis", "study", "investigation", "finding"},
	models.CategoryPlanning:      {"plan", "strategy", "roadmap", "timeline", "milestone"},
	models.CategoryReview:        {"review", "feedback", "evaluation", "assessment", "retrospective"},
}

// sourceHint is the weak signal a source type contributes to its natural category.
const sourceHint = 0.5

// KeywordClassifier scores categories by how often their keywords occur.
type KeywordClassifier struct {
	keywords map[string][]models.Category
}

// NewKeywordClassifier returns a classifier over DefaultCategoryKeywords.
func NewKeywordClassifier() *KeywordClassifier {
	return NewKeywordClassifierWith(DefaultCategoryKeywords)
}

// NewKeywordClassifierWith returns a classifier over a custom keyword table.
func NewKeywordClassifierWith(table map[models.Category][]string) *KeywordClassifier {
	k := &KeywordClassifier{keywords: make(map[string][]models.Category)}
	for cat, words := range table {
		for _, w := range words {
			n := Normalize(w)
			k.keywords[n] = append(k.keywords[n], cat)
		}
	}
	return k
}

// Classify picks the highest scoring category. Ties go to the category listed
// first in models.Categories, and no signal at all yields other.
func (k *KeywordClassifier) Classify(_ context.Context, doc Document) (models.Category, error) {
	scores := make(map[models.Category]float64)
	for term, n := range doc.Terms {
		for _, cat := range k.keywords[term] {
			scores[cat] += float64(n)
		}
	}
	switch doc.Source {
	case models.SourceMeeting:
		scores[models.CategoryMeeting] += sourceHint
	case models.SourceEmail:
		scores[models.CategoryCommunication] += sourceHint
	}

	best, bestScore := models.CategoryOther, 0.0
	for _, cat := range models.Categories {
		if s := scores[cat]; s > bestScore {
			best, bestScore = cat, s
		}
	}
	return best, nil
}

// LLMClassifier asks a language model for the category and falls back to
// another classifier when the model fails or answers outside the closed set.
type LLMClassifier struct {
	completer llm.Completer
	fallback  Classifier
	maxChars  int
	logger    *zap.Logger
}

// NewLLMClassifier returns a classifier backed by completer.
func NewLLMClassifier(completer llm.Completer, fallback Classifier, logger *zap.Logger) *LLMClassifier {
	if fallback == nil {
		fallback = NewKeywordClassifier()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{completer: completer, fallback: fallback, maxChars: 3000, logger: logger}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, doc Document) (models.Category, error) {
	answer, err := c.completer.Complete(ctx, c.prompt(doc))
	if err != nil {
		c.logger.Warn("llm classification failed, using fallback", zap.Error(err))
		return c.fallback.Classify(ctx, doc)
	}
	if cat, ok := parseCategory(answer); ok {
		return cat, nil
	}
	c.logger.Debug("llm answered outside the category set", zap.String("answer", utils.Truncate(answer, 80)))
	return c.fallback.Classify(ctx, doc)
}

func (c *LLMClassifier) prompt(doc Document) string {
	names := make([]string, len(models.Categories))
	for i, cat := range models.Categories {
		names[i] = string(cat)
	}
	return fmt.Sprintf(`Classify this %s into exactly one category.
Categories: %s.
Answer with the category name only.

Title: %s
Content:
%s`, doc.Source, strings.Join(names, ", "), doc.Title, utils.Truncate(doc.Content, c.maxChars))
}

// parseCategory finds the first category name in a model answer.
func parseCategory(answer string) (models.Category, bool) {
	for _, tok := range strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if cat, ok := models.ParseCategory(tok); ok {
			return cat, true
		}
	}
	return "", false
}
