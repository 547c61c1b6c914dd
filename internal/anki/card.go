// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package anki builds card-generation prompts, parses model output into
// cards, and writes cards in Anki's tab-separated import format.
package anki

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// Default tags attached to generated cards.
var (
	BasicTags = []string{"PDF2Anki", "auto-generated"}
	ClozeTags = []string{"PDF2Anki", "auto-generated", "cloze"}
)

var fieldReplacer = strings.NewReplacer("\r\n", "<br>", "\n", "<br>", "\r", "<br>", "\t", " ")

// TSVRow formats one card as question, back, tags. The back is the answer
// for basic cards and the extra field for cloze cards, falling back to
// the answer when extra is empty. Tabs and newlines inside fields are
// replaced so that one card is exactly one row.
func TSVRow(c types.Card) string {
	back := c.Answer
	if c.NoteType == types.NoteCloze && c.Extra != "" {
		back = c.Extra
	}
	return field(c.Question) + "\t" + field(back) + "\t" + field(strings.Join(c.Tags, ";"))
}

func field(s string) string {
	return fieldReplacer.Replace(s)
}

// WriteTSV writes one row per card. When html is true the question and
// back are rendered from Markdown to HTML first, for decks imported with
// "Allow HTML in fields".
func WriteTSV(w io.Writer, cards []types.Card, html bool) error {
	bw := bufio.NewWriter(w)
	for _, c := range cards {
		if html {
			var err error
			if c, err = htmlCard(c); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, TSVRow(c)); err != nil {
			return fmt.Errorf("writing card: %w", err)
		}
	}
	return bw.Flush()
}

func htmlCard(c types.Card) (types.Card, error) {
	var err error
	if c.Question, err = RenderHTML(c.Question); err != nil {
		return c, err
	}
	if c.Answer, err = RenderHTML(c.Answer); err != nil {
		return c, err
	}
	if c.Extra, err = RenderHTML(c.Extra); err != nil {
		return c, err
	}
	return c, nil
}
