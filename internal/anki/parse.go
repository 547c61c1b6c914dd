// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package anki

import (
	"regexp"
	"strings"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// grammar describes one numbered-list card format.
type grammar struct {
	header *regexp.Regexp
	back   *regexp.Regexp
}

var (
	basicGrammar = grammar{
		header: regexp.MustCompile(`\d+\.\s*Question:[ \t]*`),
		back:   regexp.MustCompile(`\n\s*Answer:[ \t]*`),
	}
	clozeGrammar = grammar{
		header: regexp.MustCompile(`\d+\.\s*Cloze:[ \t]*`),
		back:   regexp.MustCompile(`\n\s*Extra:[ \t]*`),
	}

	// nextItem ends a card's back field.
	nextItem = regexp.MustCompile(`\n\d+\.`)
)

// ParseCards reads model output written as
//
//	1. Question: ...
//	   Answer: ...
//
// or, for cloze cards,
//
//	1. Cloze: ...
//	   Extra: ...
//
// A back field runs until the next numbered line. Items with an empty
// front are skipped. Unparseable output yields no cards.
func ParseCards(output string, nt types.NoteType) []types.Card {
	g := basicGrammar
	if nt == types.NoteCloze {
		g = clozeGrammar
	}

	cards := []types.Card{}
	pos := 0
	for pos < len(output) {
		h := g.header.FindStringIndex(output[pos:])
		if h == nil {
			break
		}
		rest := output[pos+h[1]:]

		b := g.back.FindStringIndex(rest)
		if b == nil {
			break
		}
		front := strings.TrimSpace(rest[:b[0]])

		after := rest[b[1]:]
		end := len(after)
		if n := nextItem.FindStringIndex(after); n != nil {
			end = n[0]
		}
		back := strings.TrimSpace(after[:end])

		pos += h[1] + b[1] + end

		if front == "" {
			continue
		}
		cards = append(cards, newCard(nt, front, back))
	}
	return cards
}

func newCard(nt types.NoteType, front, back string) types.Card {
	if nt == types.NoteCloze {
		return types.Card{
			Question: front,
			NoteType: types.NoteCloze,
			Extra:    back,
			Tags:     append([]string(nil), ClozeTags...),
		}
	}
	return types.Card{
		Question: front,
		Answer:   back,
		NoteType: types.NoteBasic,
		Tags:     append([]string(nil), BasicTags...),
	}
}
