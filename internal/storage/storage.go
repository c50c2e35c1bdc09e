// Package storage persists timeline items and concept clusters.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/mindline/internal/models"
)

// ErrNotFound is returned when an item id is not stored.
var ErrNotFound = errors.New("not found")

// ErrInvalidRange is returned when a range query ends before it starts.
var ErrInvalidRange = errors.New("invalid range")

// ErrOutOfRange is returned when an item timestamp falls outside
// [models.Earliest, models.Latest].
var ErrOutOfRange = errors.New("timestamp out of storable range")

// Store defines timeline persistence and retrieval.
type Store interface {
	// Item operations
	Upsert(ctx context.Context, items []models.TimelineItem) error
	Get(ctx context.Context, id string) (*models.TimelineItem, error)
	GetMany(ctx context.Context, ids []string) ([]models.TimelineItem, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)

	// Retrieval
	QueryByRange(ctx context.Context, start, end time.Time, opts models.ListOptions) ([]models.TimelineItem, error)
	QueryByConcepts(ctx context.Context, concepts []string, opts models.ListOptions) ([]models.TimelineItem, error)
	Search(ctx context.Context, text string, opts models.ListOptions) ([]models.TimelineItem, error)
	TopConcepts(ctx context.Context, n int) ([]models.ConceptCount, error)

	// Cluster operations
	ReplaceClusters(ctx context.Context, clusters []models.ConceptCluster) error
	Clusters(ctx context.Context) ([]models.ConceptCluster, error)

	Close() error
}
