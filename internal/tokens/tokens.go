// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tokens estimates how many model tokens a piece of text occupies.
// A precise BPE tokenizer is used when one is available; otherwise the
// estimate is one token per four characters.
package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used by Default.
const DefaultEncoding = "cl100k_base"

// Counter returns the exact token count of text. Implementations may fail;
// the Estimator never surfaces those failures.
type Counter func(text string) (int, error)

// Estimator turns text into a non-negative token count. The zero value uses
// the character heuristic only. An Estimator is safe for concurrent use
// when its Counter is.
type Estimator struct {
	counter Counter
}

// New returns an Estimator backed by counter. A nil counter yields the
// heuristic-only estimator.
func New(counter Counter) *Estimator {
	return &Estimator{counter: counter}
}

// Heuristic returns an Estimator that never consults a tokenizer.
func Heuristic() *Estimator {
	return &Estimator{}
}

var offlineRanks sync.Once

// Tiktoken loads the named BPE encoding and returns a Counter for it. The
// ranks come from the embedded offline loader, so no download happens.
func Tiktoken(encoding string) (Counter, error) {
	offlineRanks.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %s: %w", encoding, err)
	}
	return func(text string) (int, error) {
		return len(enc.Encode(text, nil, nil)), nil
	}, nil
}

// Default returns a cl100k_base Estimator, or the heuristic one when the
// encoding cannot be loaded.
func Default() *Estimator {
	counter, err := Tiktoken(DefaultEncoding)
	if err != nil {
		return Heuristic()
	}
	return New(counter)
}

// Precise reports whether the Estimator has a tokenizer.
func (e *Estimator) Precise() bool {
	return e != nil && e.counter != nil
}

// Estimate returns the token count of text. It never fails: a tokenizer
// error or panic falls back to the heuristic for this call only.
func (e *Estimator) Estimate(text string) int {
	if e == nil || e.counter == nil {
		return Fallback(text)
	}
	n, ok := e.count(text)
	if !ok {
		return Fallback(text)
	}
	return n
}

func (e *Estimator) count(text string) (n int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n, ok = 0, false
		}
	}()
	n, err := e.counter(text)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Fallback is the character heuristic: floor(characters / 4).
func Fallback(text string) int {
	return utf8.RuneCountInString(text) / 4
}
