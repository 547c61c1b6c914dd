// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"regexp"
	"strings"

	"github.com/pdiddy/pdf2anki/internal/tokens"
)

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
	lineSep      = "\n"
)

var blankLines = regexp.MustCompile(`\n(?:[ \t]*\n)+`)

// Split breaks text into pieces whose estimate stays within maxTokens.
// Paragraphs are packed greedily; a paragraph that alone exceeds the
// budget is packed sentence by sentence; sentences that started a new line
// in the source are rejoined on a new line. A single sentence over budget
// is emitted whole. No piece is empty and order is preserved.
func Split(est *tokens.Estimator, text string, maxTokens int) []string {
	b := &packer{est: est, max: maxTokens}

	for _, para := range paragraphs(text) {
		if est.Estimate(para) <= maxTokens {
			b.add(para, paragraphSep)
			continue
		}
		for i, sent := range sentences(para) {
			sep := sent.sep
			if i == 0 {
				sep = paragraphSep
			}
			b.add(sent.text, sep)
		}
	}
	return b.finish()
}

// packer accumulates parts into a buffer and flushes it when the next part
// would push the joined text over budget.
type packer struct {
	est *tokens.Estimator
	max int
	buf string
	out []string
}

func (p *packer) add(part, sep string) {
	if p.buf == "" {
		p.buf = part
		return
	}
	candidate := p.buf + sep + part
	if p.est.Estimate(candidate) > p.max {
		p.out = append(p.out, p.buf)
		p.buf = part
		return
	}
	p.buf = candidate
}

func (p *packer) finish() []string {
	if p.buf != "" {
		p.out = append(p.out, p.buf)
		p.buf = ""
	}
	return p.out
}

// paragraphs splits on blank lines and drops blank paragraphs.
func paragraphs(text string) []string {
	var out []string
	for _, p := range blankLines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentence is one sentence of a paragraph and the separator that joins it
// to the one before.
type sentence struct {
	text string
	sep  string
}

// sentences splits after '.', '!' or '?' when whitespace follows. The
// terminator stays with its sentence. The whitespace collapses to a line
// break when it contained one and to a single space otherwise.
func sentences(para string) []sentence {
	var out []sentence
	start, sep := 0, ""
	for i := 0; i < len(para); i++ {
		switch para[i] {
		case '.', '!', '?':
		default:
			continue
		}
		j := i + 1
		for j < len(para) && isSpace(para[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		if s := strings.TrimSpace(para[start : i+1]); s != "" {
			out = append(out, sentence{text: s, sep: sep})
		}
		sep = gapSep(para[i+1 : j])
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(para[start:]); s != "" {
		out = append(out, sentence{text: s, sep: sep})
	}
	return out
}

func gapSep(gap string) string {
	if strings.ContainsRune(gap, '\n') {
		return lineSep
	}
	return sentenceSep
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
