// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pdf2anki/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ConversionEngine identifies the PDF-to-Markdown engine.
type ConversionEngine string

const (
	EngineMarker      ConversionEngine = "marker"
	EngineMarkerLocal ConversionEngine = "marker-local"
	EngineTextLayer   ConversionEngine = "textlayer"
)

// ConversionConfig holds settings for the convert stage.
type ConversionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Engine selects the converter: marker (HTTP service), marker-local
	// (container image), or textlayer (offline).
	Engine ConversionEngine `json:"engine" yaml:"engine" mapstructure:"engine"`

	// BaseURL is the Marker service root (e.g. "http://localhost:8001").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// ConvertPath is appended to BaseURL for uploads (default "/convert").
	ConvertPath string `json:"convert_path" yaml:"convert_path" mapstructure:"convert_path"`

	// MaxRetries bounds retries on 429 and 5xx responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Image is the container image run by the marker-local engine. It reads
	// a PDF on stdin and writes Markdown on stdout.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Runtime forces docker or podman for marker-local; empty detects one.
	Runtime string `json:"runtime" yaml:"runtime" mapstructure:"runtime"`

	// OutputDir is the root that holds conversions/<sha256>/ (default "outputs").
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// ChunkingConfig holds settings for the process stage.
type ChunkingConfig struct {
	// MaxTokens is the per-chunk token budget (default 2000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// RemoveImages strips Markdown image references during cleaning.
	RemoveImages bool `json:"remove_images" yaml:"remove_images" mapstructure:"remove_images"`

	// SaveChunkFiles writes one chunks/<id>.md file per chunk.
	SaveChunkFiles bool `json:"save_chunk_files" yaml:"save_chunk_files" mapstructure:"save_chunk_files"`
}

// AIProvider selects the language model backend.
type AIProvider string

const (
	ProviderOpenAI AIProvider = "openai"
	ProviderClaude AIProvider = "claude"
	ProviderOllama AIProvider = "ollama"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider is openai (any OpenAI-compatible endpoint), claude, or ollama.
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "llama-3.1-8b-instruct").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIBase is the endpoint root for OpenAI-compatible and Ollama servers.
	APIBase string `json:"api_base,omitempty" yaml:"api_base,omitempty" mapstructure:"api_base"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// GenerationConfig holds settings for the generate stage.
type GenerationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// NumCards is the total number of cards requested for a document.
	NumCards int `json:"num_cards" yaml:"num_cards" mapstructure:"num_cards"`

	// NoteType is basic or cloze.
	NoteType NoteType `json:"note_type" yaml:"note_type" mapstructure:"note_type"`

	// Focus narrows the prompt (e.g. "definitions"); "mixed" means no focus.
	Focus string `json:"focus" yaml:"focus" mapstructure:"focus"`

	// Concurrency bounds in-flight chunk requests (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// DeckConfig holds settings for the card store.
type DeckConfig struct {
	// Dir holds deck.db and export files (default "deck").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of query results (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// Config groups all stage configurations.
type Config struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Chunking   ChunkingConfig   `json:"chunking" yaml:"chunking" mapstructure:"chunking"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Deck       DeckConfig       `json:"deck" yaml:"deck" mapstructure:"deck"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
}
