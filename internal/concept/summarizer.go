package concept

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/mindline/internal/llm"
	"github.com/hyperjump/mindline/pkg/utils"
)

const (
	summaryInputChars = 4000
	summaryMaxChars   = 280
)

// Summarizer produces a short summary of an item through a language model.
type Summarizer struct {
	completer llm.Completer
}

// NewSummarizer returns a Summarizer backed by completer.
func NewSummarizer(completer llm.Completer) *Summarizer {
	return &Summarizer{completer: completer}
}

// Summarize returns a one or two sentence summary.
func (s *Summarizer) Summarize(ctx context.Context, title, content string) (string, error) {
	prompt := fmt.Sprintf("Summarize the following in at most two sentences.\n\nTitle: %s\n\n%s",
		title, utils.Truncate(content, summaryInputChars))
	out, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}
	out = utils.CollapseWhitespace(strings.Trim(out, "\"'` \n"))
	if out == "" {
		return "", fmt.Errorf("failed to summarize: empty answer")
	}
	return utils.Truncate(out, summaryMaxChars), nil
}
