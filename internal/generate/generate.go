// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate turns document chunks into flashcards by prompting a
// language model once per planned chunk and parsing the numbered output.
package generate

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pdf2anki/internal/anki"
	"github.com/pdiddy/pdf2anki/internal/semantic"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

const (
	defaultConcurrency = 4
	defaultMaxRetries  = 3
)

// Options controls one generation run.
type Options struct {
	NumCards    int
	NoteType    types.NoteType
	Focus       string
	Concurrency int
	MaxRetries  int
	Log         *zap.Logger
}

// Result holds the cards and per-chunk counts of a run.
type Result struct {
	Cards []types.Card

	// ChunksPlanned is the number of chunks given a non-zero card quota.
	ChunksPlanned int
	ChunksFailed  int
	// ChunksSkipped counts planned chunks never started due to cancellation.
	ChunksSkipped int
}

// HasFailures reports whether any chunk failed after retries.
func (r Result) HasFailures() bool {
	return r.ChunksFailed > 0
}

// Plan assigns a card quota to each chunk in order. Every chunk asks for
// max(1, total/numChunks) cards until the total is used up; later chunks
// get zero.
func Plan(numChunks, total int) []int {
	quotas := make([]int, numChunks)
	if numChunks == 0 || total <= 0 {
		return quotas
	}
	per := max(1, total/numChunks)
	remaining := total
	for i := range quotas {
		if remaining <= 0 {
			break
		}
		quotas[i] = min(per, remaining)
		remaining -= quotas[i]
	}
	return quotas
}

// Generate prompts the backend for each planned chunk with bounded
// concurrency. A chunk that still fails after retries is logged and
// counted; it does not fail the run. When ctx is cancelled no further
// chunks start and the cards collected so far are returned with ctx.Err().
// Cards keep chunk order and are truncated to opts.NumCards.
func Generate(ctx context.Context, backend Backend, chunks []types.Chunk, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	nt := opts.NoteType
	if nt == "" {
		nt = types.NoteBasic
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	quotas := Plan(len(chunks), opts.NumCards)
	perChunk := make([][]types.Card, len(chunks))
	outcome := make([]chunkOutcome, len(chunks))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, ch := range chunks {
		if quotas[i] == 0 {
			break
		}
		if ctx.Err() != nil {
			outcome[i] = outcomeSkipped
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				outcome[i] = outcomeSkipped
				return nil
			}
			cards, err := generateChunk(ctx, backend, ch, quotas[i], nt, opts.Focus, maxRetries)
			if err != nil {
				if ctx.Err() != nil {
					outcome[i] = outcomeSkipped
					return nil
				}
				log.Warn("chunk failed", zap.String("chunk", ch.ID), zap.Error(err))
				outcome[i] = outcomeFailed
				return nil
			}
			log.Debug("chunk done", zap.String("chunk", ch.ID), zap.Int("requested", quotas[i]), zap.Int("parsed", len(cards)))
			perChunk[i] = cards
			outcome[i] = outcomeDone
			return nil
		})
	}
	g.Wait()

	res := Result{Cards: []types.Card{}}
	for i := range chunks {
		if quotas[i] == 0 {
			break
		}
		res.ChunksPlanned++
		switch outcome[i] {
		case outcomeFailed:
			res.ChunksFailed++
		case outcomeSkipped:
			res.ChunksSkipped++
		}
		res.Cards = append(res.Cards, perChunk[i]...)
	}
	if len(res.Cards) > opts.NumCards {
		res.Cards = res.Cards[:max(opts.NumCards, 0)]
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

type chunkOutcome int

const (
	outcomeDone chunkOutcome = iota
	outcomeFailed
	outcomeSkipped
)

// generateChunk builds the enriched prompt for one chunk, calls the backend,
// and stamps every parsed card with the chunk's source reference.
func generateChunk(ctx context.Context, backend Backend, ch types.Chunk, n int, nt types.NoteType, focus string, maxRetries int) ([]types.Card, error) {
	content := anki.EnrichContent(ch.Text, semantic.AnnotateChunk(ch))
	prompt, err := anki.BuildPrompt(nt, n, focus, content)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	output, err := callWithRetry(ctx, backend, prompt, maxRetries)
	if err != nil {
		return nil, err
	}

	cards := anki.ParseCards(output, nt)
	for i := range cards {
		cards[i].SourceRef = &types.SourceReference{
			PDFFingerprint: ch.SourceRef.PDFFingerprint,
			ChunkID:        ch.ID,
		}
	}
	return cards, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff.
func callWithRetry(ctx context.Context, backend Backend, prompt string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := backend.Complete(ctx, anki.SystemPrompt, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
