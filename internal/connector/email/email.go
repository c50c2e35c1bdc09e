// Package email fetches messages over IMAP.
package email

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/models"
)

// Message is one raw RFC 5322 message as stored on the server.
type Message struct {
	UID          uint32
	InternalDate time.Time
	Raw          []byte
}

// Mailbox is an authenticated session with a mail server.
type Mailbox interface {
	// Messages returns the messages of folder received on or after since and
	// before before, newest first, at most limit when limit > 0.
	Messages(ctx context.Context, folder string, since, before time.Time, limit int) ([]Message, error)
	Close() error
}

// Dialer opens an authenticated Mailbox. It returns a
// connector.AuthenticationError when the server rejects the credentials and a
// connector.TransientFetchError when the server cannot be reached.
type Dialer func(ctx context.Context) (Mailbox, error)

// Connector fetches email from the configured folders.
type Connector struct {
	dial    Dialer
	folders []string
	limit   int
	retry   connector.RetryPolicy
	logger  *zap.Logger
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

// WithDialer replaces the IMAP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Connector) { c.dial = d }
}

// WithRetryPolicy sets the backoff for transient failures.
func WithRetryPolicy(p connector.RetryPolicy) Option {
	return func(c *Connector) { c.retry = p }
}

// New returns a connector for cfg using IMAP over TLS.
func New(cfg config.EmailSourceConfig, opts ...Option) *Connector {
	c := &Connector{
		dial:    IMAPDialer(cfg),
		folders: cfg.Folders,
		limit:   cfg.MaxMessages,
		retry:   connector.DefaultRetryPolicy(),
		logger:  zap.NewNop(),
	}
	if len(c.folders) == 0 {
		c.folders = []string{"INBOX"}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns models.SourceEmail.
func (c *Connector) Source() models.SourceType { return models.SourceEmail }

// Fetch returns the messages dated within [start, end] from every folder.
// A folder that keeps failing is reported in the error while the other folders
// are still read.
func (c *Connector) Fetch(ctx context.Context, start, end time.Time) ([]models.RawItem, error) {
	mb, err := connector.Retry(ctx, c.retry, c.logger, func(ctx context.Context) (Mailbox, error) {
		return c.dial(ctx)
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			c.logger.Debug("imap logout failed", zap.Error(err))
		}
	}()

	// IMAP SEARCH compares dates only, so the server-side window is widened to
	// whole days and narrowed again on the parsed Date header.
	since := truncateDay(start)
	before := truncateDay(end).AddDate(0, 0, 1)

	var (
		items []models.RawItem
		errs  []error
	)
	for _, folder := range c.folders {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		msgs, err := connector.Retry(ctx, c.retry, c.logger, func(ctx context.Context) ([]Message, error) {
			return mb.Messages(ctx, folder, since, before, c.limit)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("folder %s: %w", folder, err))
			if connector.IsAuthentication(err) {
				break
			}
		}
		for _, m := range msgs {
			item, err := parseMessage(m, folder)
			if err != nil {
				c.logger.Warn("skipping unparseable message", zap.String("folder", folder), zap.Uint32("uid", m.UID), zap.Error(err))
				continue
			}
			ts, _ := time.Parse(time.RFC3339Nano, item.Timestamp)
			if connector.InWindow(ts, start, end) {
				items = append(items, item)
			}
		}
		c.logger.Debug("imap folder read", zap.String("folder", folder), zap.Int("messages", len(msgs)))
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp > items[j].Timestamp })
	return items, errors.Join(errs...)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
