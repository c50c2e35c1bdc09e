package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/config"
)

func TestOpenAI_Complete(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"  task \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL+"/v1/", "", "google/gemma-3-12b", srv.Client())
	out, err := c.Complete(context.Background(), "classify")
	require.NoError(t, err)
	assert.Equal(t, "task", out)
	assert.Equal(t, "google/gemma-3-12b", gotModel)
}

func TestOpenAI_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "", "m", srv.Client()).Complete(context.Background(), "x")
	assert.Error(t, err)
}

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"A short summary.","done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewOllama(srv.URL, "llama3", srv.Client())
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", out)
}

func TestNew(t *testing.T) {
	c, err := New(config.LLMConfig{Provider: "openai", BaseURL: "http://localhost:1234/v1", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	c, err = New(config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, c)

	_, err = New(config.LLMConfig{Provider: "hal"})
	assert.Error(t, err)
}
