// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

func TestSetDefaults(t *testing.T) {
	t.Setenv("MARKER_API_BASE", "http://marker:9000")
	t.Setenv("LLM_MODEL", "")
	viper.Reset()
	t.Cleanup(viper.Reset)

	setDefaults()
	var got types.Config
	require.NoError(t, viper.Unmarshal(&got))

	assert.Equal(t, types.EngineMarker, got.Conversion.Engine)
	assert.Equal(t, "http://marker:9000", got.Conversion.BaseURL)
	assert.Equal(t, 10*time.Minute, got.Conversion.Timeout)
	assert.Equal(t, "marker-pdf:latest", got.Conversion.Image)
	assert.Empty(t, got.Conversion.Runtime)
	assert.Equal(t, types.DefaultMaxTokens, got.Chunking.MaxTokens)
	assert.Equal(t, "llama-3.1-8b-instruct", got.Generation.Model)
	assert.Equal(t, types.NoteBasic, got.Generation.NoteType)
	assert.Equal(t, 4, got.Generation.Concurrency)
	assert.Equal(t, "deck", got.Deck.Dir)
	assert.Equal(t, ":8080", got.Server.Addr)
}

func TestCollectPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))
	single := filepath.Join(dir, "notes.txt")

	got, err := collectPDFs([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.PDF"),
		filepath.Join(dir, "b.pdf"),
		single,
	}, got)

	_, err = collectPDFs([]string{filepath.Join(dir, "missing.pdf")})
	assert.Error(t, err)
}

func TestResolveChunks(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chunks.jsonl")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	got, err := resolveChunks(dir)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	got, err = resolveChunks(file)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	_, err = resolveChunks(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestClip(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ééééééé", 5, "éé..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clip(tt.in, tt.n))
	}
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t\tc  "))
}
