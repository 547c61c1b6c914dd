// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value. A .env file is also honored for the
// environment variables the model backends read.
//
// Supported key files: openai-api-key, anthropic-api-key, llm-api-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// Key file names.
const (
	OpenAIKey    = "openai-api-key"
	AnthropicKey = "anthropic-api-key"
	LLMKey       = "llm-api-key"
)

// Environment variables checked when no key file is present.
var envKeys = map[string]string{
	OpenAIKey:    "OPENAI_API_KEY",
	AnthropicKey: "ANTHROPIC_API_KEY",
	LLMKey:       "LLM_API_KEY",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// APIKey picks the key for provider: a key file first, then the matching
// environment variable. OpenAI-compatible servers accept llm-api-key before
// openai-api-key. Ollama needs no key.
func APIKey(secrets map[string]string, provider types.AIProvider) string {
	var names []string
	switch provider {
	case types.ProviderClaude:
		names = []string{AnthropicKey}
	case types.ProviderOpenAI, "":
		names = []string{LLMKey, OpenAIKey}
	default:
		return ""
	}

	for _, n := range names {
		if v := secrets[n]; v != "" {
			return v
		}
	}
	for _, n := range names {
		if v := os.Getenv(envKeys[n]); v != "" {
			return v
		}
	}
	return ""
}
