// Package keyword provides ranked full-text search over timeline items.
package keyword

import (
	"context"
	"time"

	"github.com/hyperjump/mindline/internal/models"
)

// SearchOptions narrows and tunes a full-text search. Nil means defaults.
type SearchOptions struct {
	// TitleBoost multiplies matches in the title field (e.g. 3.0). Values <= 1 disable it.
	TitleBoost float64
	// Fuzziness is the maximum edit distance per query term. Zero disables fuzzy matching.
	Fuzziness int
	// Sources restricts hits to the given source types.
	Sources []models.SourceType
	// Start and End restrict hits to an inclusive timestamp range when non-zero.
	Start, End time.Time
}

// Index defines full-text index operations.
type Index interface {
	Index(ctx context.Context, items []models.TimelineItem) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Hit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single full-text match.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}
