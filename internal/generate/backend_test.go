// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

func TestOpenAIBackend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.1-8b-instruct", req.Model)
		assert.Equal(t, maxCompletionTokens, req.MaxCompletionTokens)
		assert.Equal(t, []chatMessage{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "make cards"},
		}, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"1. Question: Q\nAnswer: A"}}]}`))
	}))
	defer ts.Close()

	b := &OpenAIBackend{APIBase: ts.URL + "/v1/", APIKey: "sk-test", Model: "llama-3.1-8b-instruct", Client: ts.Client()}
	out, err := b.Complete(context.Background(), "sys", "make cards")
	require.NoError(t, err)
	assert.Equal(t, "1. Question: Q\nAnswer: A", out)
}

func TestOpenAIBackend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantAPI bool
	}{
		{"server error", http.StatusInternalServerError, "boom", true},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
		{"bad json", http.StatusOK, `not json`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			b := &OpenAIBackend{APIBase: ts.URL, Model: "m", Client: ts.Client()}
			_, err := b.Complete(context.Background(), "s", "p")
			require.Error(t, err)

			var apiErr *APIError
			assert.Equal(t, tt.wantAPI, errors.As(err, &apiErr))
			if tt.wantAPI {
				assert.Equal(t, tt.status, apiErr.Code)
				assert.Equal(t, tt.body, apiErr.Body)
			}
		})
	}
}

func TestOpenAIBackend_NoKeyOmitsAuthorization(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer ts.Close()

	b := &OpenAIBackend{APIBase: ts.URL, Model: "m", Client: ts.Client()}
	out, err := b.Complete(context.Background(), "s", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestClaudeBackend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sys", req.System)
		assert.Equal(t, []chatMessage{{Role: "user", Content: "prompt"}}, req.Messages)

		w.Write([]byte(`{"content":[{"type":"text","text":"1. Question: "},{"type":"text","text":"Q\nAnswer: A"}]}`))
	}))
	defer ts.Close()

	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	b := &ClaudeBackend{APIKey: "test-key", Model: "claude-test", Client: ts.Client()}
	out, err := b.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "1. Question: Q\nAnswer: A", out)
}

func TestClaudeBackend_EmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()

	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	b := &ClaudeBackend{APIKey: "k", Model: "m", Client: ts.Client()}
	_, err := b.Complete(context.Background(), "s", "p")
	assert.ErrorContains(t, err, "no text content")
}

func TestOllamaBackend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req["model"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"1. Question: Q\nAnswer: A"},"done":true}` + "\n"))
	}))
	defer ts.Close()

	b, err := NewOllamaBackend(ts.URL, "llama3.2", ts.Client())
	require.NoError(t, err)

	out, err := b.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "1. Question: Q\nAnswer: A", out)
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.AIConfig
		want    Backend
		wantErr bool
	}{
		{"openai with base", types.AIConfig{Provider: types.ProviderOpenAI, Model: "m", APIBase: "http://localhost:8080/v1"}, &OpenAIBackend{}, false},
		{"default provider with key", types.AIConfig{Model: "m", APIKey: "k"}, &OpenAIBackend{}, false},
		{"openai unconfigured", types.AIConfig{Provider: types.ProviderOpenAI, Model: "m"}, nil, true},
		{"claude", types.AIConfig{Provider: types.ProviderClaude, Model: "m", APIKey: "k"}, &ClaudeBackend{}, false},
		{"claude without key", types.AIConfig{Provider: types.ProviderClaude, Model: "m"}, nil, true},
		{"ollama", types.AIConfig{Provider: types.ProviderOllama, Model: "m", APIBase: "http://localhost:11434"}, &OllamaBackend{}, false},
		{"missing model", types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "k"}, nil, true},
		{"unknown provider", types.AIConfig{Provider: "gemini", Model: "m"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBackend(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}
