// Package meeting fetches meeting transcripts from the Fireflies GraphQL API.
package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/models"
)

// maxPages bounds pagination against a server that ignores skip.
const maxPages = 200

// Connector pages through transcripts dated within the fetch window.
type Connector struct {
	endpoint string
	apiKey   string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	retry    connector.RetryPolicy
	logger   *zap.Logger
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) { c.client = client }
}

// WithRetryPolicy sets the backoff for transient failures.
func WithRetryPolicy(p connector.RetryPolicy) Option {
	return func(c *Connector) { c.retry = p }
}

// New returns a connector for cfg.
func New(cfg config.MeetingSourceConfig, opts ...Option) *Connector {
	c := &Connector{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		client:   &http.Client{Timeout: 60 * time.Second},
		retry:    connector.DefaultRetryPolicy(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pageSize <= 0 || c.pageSize > 50 {
		c.pageSize = 50
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "fireflies",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Rejected credentials say nothing about the health of the service.
		IsSuccessful: func(err error) bool {
			return err == nil || connector.IsAuthentication(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c
}

// Source returns models.SourceMeeting.
func (c *Connector) Source() models.SourceType { return models.SourceMeeting }

// Fetch returns the transcripts dated within [start, end]. Pages already read
// are returned together with the error when a later page fails.
func (c *Connector) Fetch(ctx context.Context, start, end time.Time) ([]models.RawItem, error) {
	var items []models.RawItem
	for page := 0; page < maxPages; page++ {
		vars := map[string]any{
			"fromDate": start.UTC().Format(time.RFC3339),
			"toDate":   end.UTC().Format(time.RFC3339),
			"limit":    c.pageSize,
			"skip":     page * c.pageSize,
		}
		batch, err := connector.Retry(ctx, c.retry, c.logger, func(ctx context.Context) ([]transcript, error) {
			return c.transcripts(ctx, vars)
		})
		if err != nil {
			return items, fmt.Errorf("fetch transcripts page %d: %w", page, err)
		}
		for _, t := range batch {
			if t.Date.IsZero() || !connector.InWindow(t.Date.Time, start, end) {
				continue
			}
			items = append(items, toRawItem(t))
		}
		c.logger.Debug("transcripts page read", zap.Int("page", page), zap.Int("transcripts", len(batch)))
		if len(batch) < c.pageSize {
			break
		}
	}
	return items, nil
}

func (c *Connector) transcripts(ctx context.Context, vars map[string]any) ([]transcript, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.breaker.Execute(func() (any, error) {
		return c.post(ctx, graphQLRequest{Query: transcriptsQuery, Variables: vars})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, connector.Transient(models.SourceMeeting, err)
	}
	if err != nil {
		return nil, err
	}
	return res.([]transcript), nil
}

func (c *Connector) post(ctx context.Context, body graphQLRequest) ([]transcript, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, connector.Transient(models.SourceMeeting, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, connector.Transient(models.SourceMeeting, fmt.Errorf("read response: %w", err))
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, connector.Auth(models.SourceMeeting, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, connector.Transient(models.SourceMeeting, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data))
	}

	var out transcriptsResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, graphQLFailure(out.Errors)
	}
	return out.Data.Transcripts, nil
}

// graphQLFailure classifies errors the API reports inside a 200 response.
func graphQLFailure(errs []graphQLError) error {
	msgs := make([]string, len(errs))
	auth := false
	for i, e := range errs {
		msgs[i] = e.Message
		code, _ := e.Extensions["code"].(string)
		if code == "UNAUTHENTICATED" || code == "FORBIDDEN" || strings.Contains(strings.ToLower(e.Message), "api key") {
			auth = true
		}
	}
	err := fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	if auth {
		return connector.Auth(models.SourceMeeting, err)
	}
	return err
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// toRawItem maps a transcript. Duration is reported in seconds.
func toRawItem(t transcript) models.RawItem {
	item := models.RawItem{
		Source:    models.SourceMeeting,
		NativeID:  t.ID,
		Timestamp: t.Date.Format(time.RFC3339Nano),
		Title:     t.Title,
		Format:    models.FormatTranscript,
		Fields: map[string]string{
			models.FieldDurationMinutes: strconv.FormatFloat(t.Duration/60, 'f', -1, 64),
			models.FieldOrganizer:       t.OrganizerEmail,
		},
		Lists: map[string][]string{
			models.ListParticipants: t.Participants,
		},
	}
	switch {
	case t.TranscriptURL != "":
		item.Fields[models.FieldURL] = t.TranscriptURL
	case t.MeetingLink != "":
		item.Fields[models.FieldURL] = t.MeetingLink
	}
	for _, s := range t.Sentences {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		item.Turns = append(item.Turns, models.Turn{Speaker: s.SpeakerName, Text: s.Text, Offset: s.StartTime})
	}
	if t.Summary != nil {
		item.Body = t.Summary.Overview
		item.Lists[models.ListActionItems] = t.Summary.ActionItems
	}
	return item
}
