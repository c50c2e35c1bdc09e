// Package notes reads notes exported to a directory tree.
package notes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/extract"
	"github.com/hyperjump/mindline/internal/models"
)

// DefaultExtensions are the note formats read when none are configured.
var DefaultExtensions = []string{".md", ".txt", ".html", ".htm", ".pdf", ".docx", ".odt", ".rtf"}

// Connector reads exported notes. A note is placed on the timeline at its last
// modification, and only notes modified within the fetch window are returned.
type Connector struct {
	dir       string
	account   string
	exts      []string
	extractor *extract.Extractor
	logger    *zap.Logger
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

// WithExtractor replaces the default text extractor.
func WithExtractor(x *extract.Extractor) Option {
	return func(c *Connector) { c.extractor = x }
}

// New returns a connector for cfg.Dir.
func New(cfg config.NotesSourceConfig, opts ...Option) *Connector {
	c := &Connector{
		dir:       cfg.Dir,
		account:   cfg.Account,
		exts:      cfg.Extensions,
		extractor: extract.NewExtractor(0),
		logger:    zap.NewNop(),
	}
	if len(c.exts) == 0 {
		c.exts = DefaultExtensions
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns models.SourceNote.
func (c *Connector) Source() models.SourceType { return models.SourceNote }

// Fetch returns the notes modified within [start, end]. Files whose text
// cannot be extracted are skipped and reported in the returned error.
func (c *Connector) Fetch(ctx context.Context, start, end time.Time) ([]models.RawItem, error) {
	var (
		items []models.RawItem
		errs  []error
	)
	err := connector.WalkFiles(ctx, c.dir, c.exts, func(f connector.File) error {
		modified := f.Info.ModTime()
		if !connector.InWindow(modified, start, end) || !c.extractor.Supported(f.Path) {
			return nil
		}
		text, err := c.extractor.Extract(f.Path)
		if err != nil {
			c.logger.Warn("skipping note", zap.String("path", f.Path), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", f.Rel, err))
			return nil
		}
		if strings.TrimSpace(text.Body) == "" {
			c.logger.Debug("skipping empty note", zap.String("path", f.Path))
			return nil
		}
		ts := modified.UTC().Format(time.RFC3339Nano)
		items = append(items, models.RawItem{
			Source:    models.SourceNote,
			NativeID:  f.Rel,
			Timestamp: ts,
			Modified:  ts,
			Title:     strings.TrimSuffix(filepath.Base(f.Rel), filepath.Ext(f.Rel)),
			Body:      text.Body,
			Format:    text.Format,
			Fields: map[string]string{
				models.FieldFolder:  folderOf(f.Rel),
				models.FieldAccount: c.account,
				models.FieldCreated: ts,
			},
		})
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return items, errors.Join(errs...)
}

// folderOf returns the top-level folder of a slash-separated relative path,
// or "" for notes at the root.
func folderOf(rel string) string {
	if i := strings.IndexByte(rel, '/'); i > 0 {
		return rel[:i]
	}
	return ""
}
