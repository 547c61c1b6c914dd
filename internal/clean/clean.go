// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clean strips PDF-conversion artifacts from Markdown: stray
// symbol lines, repeated page headers and footers, excess whitespace, and
// optionally image references. Math written as $...$ is never removed.
package clean

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

const (
	// repeatMinCount is the occurrence count at which a short line is
	// treated as a running header or footer.
	repeatMinCount = 3

	// repeatMaxLen bounds the length of lines considered by the repetition filter.
	repeatMaxLen = 100

	// patternPreviewLen truncates removed content in RemovedPatterns.
	patternPreviewLen = 50
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	inlineMath   = regexp.MustCompile(`\$.*\$`)
	imageRef     = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
)

// Options controls optional cleaning steps.
type Options struct {
	// RemoveImages strips ![alt](src) references.
	RemoveImages bool
}

// cleaner accumulates statistics while the steps run.
type cleaner struct {
	removed   []string
	artifacts int
}

func (c *cleaner) record(prefix, content string) {
	c.artifacts++
	c.removed = append(c.removed, prefix+preview(content))
}

// Clean runs the cleaning steps in order and reports what was removed.
// It accepts any string, including the empty string.
func Clean(markdown string, opts Options) types.CleaningResult {
	var c cleaner

	text := strings.ReplaceAll(markdown, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = trimTrailing(text)

	before := lineCount(text)
	text = multiNewline.ReplaceAllString(text, "\n\n")
	linesRemoved := before - lineCount(text)

	text = c.dropArtifactLines(text)
	text = c.dropRepeatedLines(text)

	text = collapseWhitespace(text)

	if opts.RemoveImages {
		text = c.dropImages(text)
	}

	text = strings.TrimSpace(text) + "\n"

	removed := c.removed
	if len(removed) > types.MaxRemovedPatterns {
		removed = removed[:types.MaxRemovedPatterns]
	}
	if removed == nil {
		removed = []string{}
	}

	origLen := utf8.RuneCountInString(markdown)
	finalLen := utf8.RuneCountInString(text)

	return types.CleaningResult{
		CleanedText:     text,
		RemovedPatterns: removed,
		Stats: types.CleaningStats{
			OriginalLength:   origLen,
			FinalLength:      finalLen,
			LinesRemoved:     linesRemoved,
			ArtifactsRemoved: c.artifacts,
			ReductionPercent: reduction(origLen, finalLen),
		},
	}
}

// dropArtifactLines removes non-blank lines that carry no letters or
// digits, are not headings or list items, and hold no inline math.
func (c *cleaner) dropArtifactLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isArtifact(trimmed) {
			c.record("OCR artifact: ", trimmed)
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isArtifact(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	if hasAlnum(trimmed) {
		return false
	}
	if startsWithMarker(trimmed) {
		return false
	}
	return !inlineMath.MatchString(trimmed)
}

// dropRepeatedLines removes every occurrence of short lines that appear
// repeatMinCount or more times. Counting completes before any line is
// dropped.
func (c *cleaner) dropRepeatedLines(text string) string {
	lines := strings.Split(text, "\n")

	counts := make(map[string]int)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && utf8.RuneCountInString(trimmed) < repeatMaxLen {
			counts[trimmed]++
		}
	}

	repeated := make(map[string]bool)
	for line, n := range counts {
		if n >= repeatMinCount && !strings.HasPrefix(line, "#") && !inlineMath.MatchString(line) {
			repeated[line] = true
		}
	}
	if len(repeated) == 0 {
		return text
	}

	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if repeated[trimmed] {
			c.record("Repetitive header/footer: ", trimmed)
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// dropImages strips image references, then re-normalizes whitespace so
// that the removal does not leave trailing blanks behind.
func (c *cleaner) dropImages(text string) string {
	for _, ref := range imageRef.FindAllString(text, -1) {
		c.record("Image reference: ", ref)
	}
	text = imageRef.ReplaceAllString(text, "")
	return collapseWhitespace(trimTrailing(text))
}

func trimTrailing(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func collapseWhitespace(text string) string {
	text = horizontalWS.ReplaceAllString(text, " ")
	return multiNewline.ReplaceAllString(text, "\n\n")
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func startsWithMarker(s string) bool {
	switch s[0] {
	case '#', '-', '*', '+':
		return true
	}
	return false
}

func lineCount(text string) int {
	return strings.Count(text, "\n") + 1
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= patternPreviewLen {
		return s
	}
	return string([]rune(s)[:patternPreviewLen])
}

func reduction(origLen, finalLen int) float64 {
	if origLen == 0 {
		return 0
	}
	pct := (1 - float64(finalLen)/float64(origLen)) * 100
	return math.Round(pct*100) / 100
}
