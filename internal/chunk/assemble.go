// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chunk turns cleaned Markdown into token-bounded chunks. Sections
// start at headings; a section over budget is split at paragraph and then
// sentence boundaries. Chunk IDs are sequential across the whole document.
package chunk

import (
	"fmt"
	"strings"

	"github.com/pdiddy/pdf2anki/internal/tokens"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

// Chunker assembles chunks under a fixed token budget.
type Chunker struct {
	est       *tokens.Estimator
	maxTokens int
}

// New returns a Chunker. A maxTokens of zero or less selects
// types.DefaultMaxTokens; a nil estimator uses the character heuristic.
func New(est *tokens.Estimator, maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = types.DefaultMaxTokens
	}
	if est == nil {
		est = tokens.Heuristic()
	}
	return &Chunker{est: est, maxTokens: maxTokens}
}

// MaxTokens returns the budget in effect.
func (c *Chunker) MaxTokens() int {
	return c.maxTokens
}

// Assemble segments markdown and emits chunks in document order. It never
// fails; input without structure degrades to fewer, larger chunks.
func (c *Chunker) Assemble(markdown, fingerprint string) types.ChunkingResult {
	result := types.ChunkingResult{Chunks: []types.Chunk{}}

	for _, sec := range Segment(markdown) {
		text := strings.TrimSpace(sec.Body)
		if text == "" {
			continue
		}

		pieces := []string{text}
		if c.est.Estimate(text) > c.maxTokens {
			pieces = Split(c.est, sec.Body, c.maxTokens)
		}

		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			result.Chunks = append(result.Chunks, c.newChunk(len(result.Chunks)+1, piece, fingerprint, sec))
		}
	}

	result.TotalChunks = len(result.Chunks)
	for _, ch := range result.Chunks {
		result.TotalTokens += ch.TokenCount
	}
	return result
}

func (c *Chunker) newChunk(seq int, text, fingerprint string, sec Section) types.Chunk {
	id := ChunkID(seq)
	ch := types.Chunk{
		ID:         id,
		Text:       text,
		TokenCount: c.est.Estimate(text),
		SourceRef: types.SourceReference{
			PDFFingerprint: fingerprint,
			ChunkID:        id,
		},
	}
	if sec.Title != "" {
		title := sec.Title
		ch.SectionTitle = &title
	}
	if sec.StartPage > 0 {
		start, end := sec.StartPage, sec.EndPage
		ch.StartPage = &start
		ch.EndPage = &end
	}
	return ch
}

// ChunkID formats the 1-based sequence number of a chunk.
func ChunkID(seq int) string {
	return fmt.Sprintf("chunk_%04d", seq)
}
