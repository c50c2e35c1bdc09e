// Package normalize turns provider-native raw items into canonical timeline items.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/itemid"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/pkg/utils"
)

const maxTitleLen = 80

// Normalizer converts RawItems into TimelineItems.
type Normalizer struct {
	logger *zap.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Normalizer) { n.logger = logger }
}

// New returns a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts raw into a timeline item with a stable id, a UTC timestamp,
// plain-text content, and validated metadata. Concepts, categories and the score
// are left for later stages. Failures are *MalformedItemError.
func (n *Normalizer) Normalize(raw models.RawItem) (models.TimelineItem, error) {
	if !raw.Source.Valid() {
		return models.TimelineItem{}, malformed(raw, "unknown source type", nil)
	}
	if strings.TrimSpace(raw.NativeID) == "" {
		return models.TimelineItem{}, malformed(raw, "missing native id", nil)
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return models.TimelineItem{}, malformed(raw, "unparseable timestamp", err)
	}
	if !models.Storable(ts) {
		return models.TimelineItem{}, malformed(raw, "timestamp outside storable range", nil)
	}

	content, err := n.content(raw)
	if err != nil {
		return models.TimelineItem{}, malformed(raw, "content could not be unwrapped", err)
	}
	if strings.TrimSpace(content) == "" {
		return models.TimelineItem{}, malformed(raw, "empty content", nil)
	}

	md, err := buildMetadata(raw, content)
	if err != nil {
		return models.TimelineItem{}, malformed(raw, "invalid metadata", err)
	}
	if err := md.Validate(raw.Source); err != nil {
		return models.TimelineItem{}, malformed(raw, "invalid metadata", err)
	}

	item := models.TimelineItem{
		ID:         itemid.ItemID(string(raw.Source), raw.NativeID),
		SourceType: raw.Source,
		SourceID:   strings.TrimSpace(raw.NativeID),
		Title:      title(raw.Title, content),
		Content:    content,
		Timestamp:  ts,
		Metadata:   md,
	}
	if raw.Modified != "" {
		if mt, err := ParseTimestamp(raw.Modified); err == nil && models.Storable(mt) {
			item.LastModified = &mt
		} else {
			n.logger.Debug("ignoring unusable modification time",
				zap.String("id", item.ID), zap.String("modified", raw.Modified))
		}
	}
	return item, nil
}

// content applies the per-source content policy.
func (n *Normalizer) content(raw models.RawItem) (string, error) {
	switch raw.Source {
	case models.SourceScreenshot:
		// OCR text is kept verbatim.
		return raw.Body, nil
	case models.SourceMeeting:
		if len(raw.Turns) > 0 {
			return FlattenTranscript(raw.Turns), nil
		}
		return unwrap(raw.Body, raw.Format, StripHTML)
	case models.SourceEmail:
		return unwrap(raw.Body, raw.Format, StripHTML)
	case models.SourceNote:
		return unwrap(raw.Body, raw.Format, HTMLToText)
	}
	return raw.Body, nil
}

func unwrap(body string, format models.ContentFormat, html func(string) (string, error)) (string, error) {
	switch format {
	case models.FormatHTML:
		return html(body)
	case models.FormatMarkdown:
		return StripMarkdown(body), nil
	}
	return tidyLines(body), nil
}

func title(raw, content string) string {
	if t := utils.CollapseWhitespace(raw); t != "" {
		return t
	}
	return utils.Truncate(utils.FirstLine(content), maxTitleLen)
}
