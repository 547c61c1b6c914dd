// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BoundaryType classifies a structural line found inside a chunk.
type BoundaryType string

const (
	BoundaryHeading      BoundaryType = "heading"
	BoundaryBulletList   BoundaryType = "bullet_list"
	BoundaryNumberedList BoundaryType = "numbered_list"
)

// Definition is a term/definition pair found in emphasized Markdown.
type Definition struct {
	Term       string `json:"term" yaml:"term"`
	Definition string `json:"definition" yaml:"definition"`
}

// ConceptBoundary marks a structural line. Line is the 0-based line index
// within the chunk text; Text is truncated to 100 characters.
type ConceptBoundary struct {
	Type BoundaryType `json:"type" yaml:"type"`
	Text string       `json:"text" yaml:"text"`
	Line int          `json:"line" yaml:"line"`
}

// SemanticInfo holds the lightweight annotations derived from one chunk.
type SemanticInfo struct {
	Definitions       []Definition      `json:"definitions" yaml:"definitions"`
	KeyTerms          []string          `json:"key_terms" yaml:"key_terms"`
	ConceptBoundaries []ConceptBoundary `json:"concept_boundaries" yaml:"concept_boundaries"`
}
