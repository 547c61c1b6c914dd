// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// NoteType selects the Anki note type of a card.
type NoteType string

const (
	NoteBasic NoteType = "basic"
	NoteCloze NoteType = "cloze"
)

// ParseNoteType validates a note type string. The empty string means basic.
func ParseNoteType(s string) (NoteType, error) {
	switch NoteType(s) {
	case NoteBasic, "":
		return NoteBasic, nil
	case NoteCloze:
		return NoteCloze, nil
	default:
		return "", fmt.Errorf("unsupported note type %q: use basic or cloze", s)
	}
}

// Card is a single flashcard. For cloze cards Question holds the cloze text
// and Extra the back-extra field.
type Card struct {
	Question  string           `json:"question" yaml:"question"`
	Answer    string           `json:"answer" yaml:"answer"`
	NoteType  NoteType         `json:"note_type" yaml:"note_type"`
	Extra     string           `json:"extra,omitempty" yaml:"extra,omitempty"`
	Tags      []string         `json:"tags" yaml:"tags"`
	SourceRef *SourceReference `json:"source_ref,omitempty" yaml:"source_ref,omitempty"`
}
