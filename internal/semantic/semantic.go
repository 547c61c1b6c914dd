// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package semantic derives lightweight annotations from chunk text:
// emphasized definitions, key terms, and structural boundaries. The
// annotations feed prompt enrichment during card generation.
package semantic

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

const (
	minTermLen      = 3
	maxTermLen      = 49
	boundaryTextLen = 100
)

// definitionPatterns run independently; their results are concatenated.
var definitionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)\*\*([^*]+)\*\*\s+is\s+(?:(?:an|a|the)\s+)?(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)^\s*\*\*([^*]+)\*\*\s*:\s*(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)^\s*\*\*([^*]+)\*\*\s*-\s*(.+?)(?:[.,;]|$)`),
}

var (
	strongSpan = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	weakSpan   = regexp.MustCompile(`\*([^*]+)\*`)
	quoteSpan  = regexp.MustCompile(`"([^"]{3,50})"`)
	mathSpan   = regexp.MustCompile(`\$[^$\n]+\$`)

	headingStart  = regexp.MustCompile(`^#{1,6}\s+`)
	bulletStart   = regexp.MustCompile(`^[-*+]\s+`)
	numberedStart = regexp.MustCompile(`^\d+[.)]\s+`)
)

// AnnotateChunk annotates the text of ch.
func AnnotateChunk(ch types.Chunk) types.SemanticInfo {
	return Annotate(ch.Text)
}

// Annotate is a pure function of text.
func Annotate(text string) types.SemanticInfo {
	return types.SemanticInfo{
		Definitions:       Definitions(text),
		KeyTerms:          KeyTerms(text),
		ConceptBoundaries: Boundaries(text),
	}
}

// Definitions finds **term** is ..., **term**: ..., and **term** - ...
// patterns. Each definition runs to the next '.', ',' or ';' or the end
// of the line.
func Definitions(text string) []types.Definition {
	defs := []types.Definition{}
	for _, re := range definitionPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			term := strings.TrimSpace(m[1])
			def := strings.TrimSpace(m[2])
			if term == "" || def == "" {
				continue
			}
			defs = append(defs, types.Definition{Term: term, Definition: def})
		}
	}
	return defs
}

// KeyTerms collects strong and weak emphasis outside math spans plus
// quoted phrases, deduplicated case-insensitively in first-seen order.
func KeyTerms(text string) []string {
	masked := blank(mathSpan, text)

	var candidates []string
	collect := func(re *regexp.Regexp, s string) {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			term := strings.TrimSpace(m[1])
			if n := utf8.RuneCountInString(term); n >= minTermLen && n <= maxTermLen {
				candidates = append(candidates, term)
			}
		}
	}
	collect(strongSpan, masked)
	collect(weakSpan, blank(strongSpan, masked))
	for _, m := range quoteSpan.FindAllStringSubmatch(text, -1) {
		if term := strings.TrimSpace(m[1]); term != "" {
			candidates = append(candidates, term)
		}
	}

	terms := []string{}
	seen := make(map[string]bool)
	for _, term := range candidates {
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, term)
	}
	return terms
}

// Boundaries tags heading, bullet-list, and numbered-list lines.
func Boundaries(text string) []types.ConceptBoundary {
	out := []types.ConceptBoundary{}
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		var kind types.BoundaryType
		switch {
		case headingStart.MatchString(trimmed):
			kind = types.BoundaryHeading
		case bulletStart.MatchString(trimmed):
			kind = types.BoundaryBulletList
		case numberedStart.MatchString(trimmed):
			kind = types.BoundaryNumberedList
		default:
			continue
		}
		out = append(out, types.ConceptBoundary{Type: kind, Text: truncate(trimmed, boundaryTextLen), Line: i})
	}
	return out
}

// blank replaces every match of re with spaces, preserving byte offsets.
// Math spans are blanked before emphasis is read, and strong spans before
// weak ones.
func blank(re *regexp.Regexp, text string) string {
	return re.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
