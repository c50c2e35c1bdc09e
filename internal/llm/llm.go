// Package llm provides the text completion backends used for classification and
// summaries: any OpenAI-compatible endpoint (LM Studio by default) or Ollama.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/mindline/internal/config"
)

// Completer turns a prompt into a completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New returns the Completer selected by cfg.
func New(cfg config.LLMConfig) (Completer, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, httpClient), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, httpClient)
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// OpenAI talks to an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI returns a client for baseURL. Local servers accept any key.
func NewOpenAI(baseURL, apiKey, model string, httpClient *http.Client) *OpenAI {
	if apiKey == "" {
		apiKey = "not-needed"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Ollama talks to a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama returns a client for the Ollama server at baseURL.
func NewOllama(baseURL, model string, httpClient *http.Client) (*Ollama, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Ollama{client: api.NewClient(u, httpClient), model: model}, nil
}

// Complete implements Completer.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	stream := false
	var b strings.Builder
	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}, func(r api.GenerateResponse) error {
		b.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
