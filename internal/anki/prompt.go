// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package anki

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// SystemPrompt is the system message sent with every generation request.
const SystemPrompt = "You are a helpful assistant that creates educational flashcards."

const (
	defaultFocus   = "key concepts, definitions, and important details"
	maxPromptChars = 4000
	maxHintTerms   = 10
	maxHintDefs    = 5
)

var promptTmpl = template.Must(template.New("cards").Parse(`Create Anki flashcards from the following content. Focus on {{.Focus}}.

IMPORTANT:
- {{.Instructions}}
- Do not include any other text, explanations, headings, or formatting.
- Ensure mathematical expressions are wrapped in $...$ for inline math or $$...$$ for display math.
- Keep each item concise but informative.

Content:
{{.Content}}
`))

// OutputInstructions describes the numbered-list format the model must use.
func OutputInstructions(nt types.NoteType, n int) string {
	if nt == types.NoteCloze {
		return fmt.Sprintf("Generate exactly %d cloze deletions. Output ONLY a numbered list with this exact format:\n"+
			"1. Cloze: [Text containing {{c1::...}} or {{cN::...}}]\n   Extra: [optional extra]\n\n"+
			"2. Cloze: [Text]\n   Extra: [optional extra]", n)
	}
	return fmt.Sprintf("Generate exactly %d flashcards. Output ONLY a numbered list with this exact format:\n"+
		"1. Question: [question text]\n   Answer: [answer text]\n\n"+
		"2. Question: [question text]\n   Answer: [answer text]", n)
}

// BuildPrompt renders the user prompt for one piece of content. An empty
// focus or "mixed" asks for general coverage. Content is cut to 4000
// characters.
func BuildPrompt(nt types.NoteType, n int, focus, content string) (string, error) {
	if focus == "" || focus == "mixed" {
		focus = defaultFocus
	}
	if utf8.RuneCountInString(content) > maxPromptChars {
		content = string([]rune(content)[:maxPromptChars])
	}

	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, struct {
		Focus        string
		Instructions string
		Content      string
	}{focus, OutputInstructions(nt, n), content})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}

// EnrichContent appends up to ten key terms and five definitions to a
// chunk's text as hints for the model.
func EnrichContent(text string, info types.SemanticInfo) string {
	var b strings.Builder
	b.WriteString(text)

	if terms := info.KeyTerms; len(terms) > 0 {
		if len(terms) > maxHintTerms {
			terms = terms[:maxHintTerms]
		}
		b.WriteString("\n\nKey terms in this section: ")
		b.WriteString(strings.Join(terms, ", "))
	}

	if defs := info.Definitions; len(defs) > 0 {
		if len(defs) > maxHintDefs {
			defs = defs[:maxHintDefs]
		}
		b.WriteString("\n\nImportant definitions:\n")
		for _, d := range defs {
			fmt.Fprintf(&b, "- %s: %s\n", d.Term, d.Definition)
		}
	}
	return b.String()
}
