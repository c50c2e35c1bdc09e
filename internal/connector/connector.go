// Package connector defines the source connector contract and the concurrent
// fetch phase that drives every configured connector for a time window.
package connector

import (
	"context"
	"time"

	"github.com/hyperjump/mindline/internal/models"
)

// Connector fetches raw items for one data source.
//
// Fetch returns the items whose timestamp lies within [start, end]. It may return
// items together with an error when only part of the window could be read, and it
// must return promptly with whatever it has when ctx is done.
type Connector interface {
	Source() models.SourceType
	Fetch(ctx context.Context, start, end time.Time) ([]models.RawItem, error)
}

// Func adapts a function to the Connector interface.
type Func struct {
	Type models.SourceType
	Fn   func(ctx context.Context, start, end time.Time) ([]models.RawItem, error)
}

// Source returns the source type.
func (f Func) Source() models.SourceType { return f.Type }

// Fetch calls the wrapped function.
func (f Func) Fetch(ctx context.Context, start, end time.Time) ([]models.RawItem, error) {
	return f.Fn(ctx, start, end)
}

// InWindow reports whether t lies within [start, end], bounds included.
func InWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
