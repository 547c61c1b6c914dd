// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// maxCompletionTokens caps each model response.
const maxCompletionTokens = 2000

// Backend abstracts the language model so tests can supply a mock. Each
// call carries one rendered prompt and returns the raw completion text.
type Backend interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NewBackend returns the backend selected by cfg.Provider.
func NewBackend(cfg types.AIConfig, client *http.Client) (Backend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured for provider %q", cfg.Provider)
	}
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		if cfg.APIBase == "" && cfg.APIKey == "" {
			return nil, fmt.Errorf("no LLM configured: set an API base for a local server or an OpenAI API key")
		}
		return &OpenAIBackend{APIBase: cfg.APIBase, APIKey: cfg.APIKey, Model: cfg.Model, Client: client}, nil
	case types.ProviderClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude provider requires an API key")
		}
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: client}, nil
	case types.ProviderOllama:
		return NewOllamaBackend(cfg.APIBase, cfg.Model, client)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q: use openai, claude, or ollama", cfg.Provider)
	}
}

// APIError reports a non-200 response from a model API.
type APIError struct {
	Provider string
	Code     int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Code, e.Body)
}

func readAPIError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Provider: provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// --- OpenAI-compatible ---

// openAIAPIBase is used when no API base is configured. Package-level var
// for test substitution.
var openAIAPIBase = "https://api.openai.com/v1"

// OpenAIBackend calls any server implementing the OpenAI chat completions
// endpoint (OpenAI itself, llama.cpp, vLLM, LM Studio).
type OpenAIBackend struct {
	APIBase string
	APIKey  string
	Model   string
	Client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts one system and one user message to /chat/completions.
func (o *OpenAIBackend) Complete(ctx context.Context, system, prompt string) (string, error) {
	base := o.APIBase
	if base == "" {
		base = openAIAPIBase
	}

	bodyBytes, err := json.Marshal(openAIRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxCompletionTokens: maxCompletionTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}

	resp, err := httpClient(o.Client).Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat completions API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError("chat completions", resp)
	}

	var oResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return "", fmt.Errorf("decoding chat completions response: %w", err)
	}
	if len(oResp.Choices) == 0 {
		return "", fmt.Errorf("chat completions API returned no choices")
	}
	return oResp.Choices[0].Message.Content, nil
}

// --- Claude ---

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Anthropic Messages API.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends the prompt as a single user turn.
func (c *ClaudeBackend) Complete(ctx context.Context, system, prompt string) (string, error) {
	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: maxCompletionTokens,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := httpClient(c.Client).Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError("Claude", resp)
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var b strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return b.String(), nil
}

// --- Ollama ---

// OllamaBackend calls a local Ollama server through its Go client.
type OllamaBackend struct {
	Client *api.Client
	Model  string
}

// NewOllamaBackend connects to host, or to OLLAMA_HOST when host is empty.
func NewOllamaBackend(host, model string, client *http.Client) (*OllamaBackend, error) {
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating Ollama client: %w", err)
		}
		return &OllamaBackend{Client: c, Model: model}, nil
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing Ollama host %q: %w", host, err)
	}
	return &OllamaBackend{Client: api.NewClient(u, httpClient(client)), Model: model}, nil
}

// Complete runs a non-streaming chat request.
func (o *OllamaBackend) Complete(ctx context.Context, system, prompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: o.Model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
		Options: map[string]any{
			"num_predict": maxCompletionTokens,
		},
	}

	var b strings.Builder
	err := o.Client.Chat(ctx, req, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	return b.String(), nil
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
