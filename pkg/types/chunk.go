// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DefaultMaxTokens is the token budget applied when a caller supplies none.
const DefaultMaxTokens = 2000

// SourceReference links a derived record back to the PDF it came from.
// PDFFingerprint is the SHA-256 hex digest of the source PDF bytes.
type SourceReference struct {
	PDFFingerprint string `json:"pdf_sha256" yaml:"pdf_sha256"`
	ChunkID        string `json:"chunk_id,omitempty" yaml:"chunk_id,omitempty"`
}

// Chunk is one bounded-size piece of a document's cleaned Markdown.
type Chunk struct {
	// ID has the form chunk_NNNN, 1-based and sequential across the document.
	ID string `json:"id" yaml:"id"`

	// Text is the trimmed chunk content.
	Text string `json:"text" yaml:"text"`

	// TokenCount is the estimate of Text, recomputed at assembly time.
	TokenCount int `json:"token_count" yaml:"token_count"`

	SourceRef SourceReference `json:"source_ref" yaml:"source_ref"`

	// StartPage and EndPage are set only when the document carries page markers.
	StartPage *int `json:"start_page" yaml:"start_page,omitempty"`
	EndPage   *int `json:"end_page" yaml:"end_page,omitempty"`

	// SectionTitle is the heading text of the section the chunk came from.
	SectionTitle *string `json:"section_title" yaml:"section_title,omitempty"`
}

// Title returns the section title or the empty string.
func (c Chunk) Title() string {
	if c.SectionTitle == nil {
		return ""
	}
	return *c.SectionTitle
}

// ChunkingResult is the ordered output of chunk assembly.
type ChunkingResult struct {
	Chunks      []Chunk `json:"chunks" yaml:"chunks"`
	TotalChunks int     `json:"total_chunks" yaml:"total_chunks"`
	TotalTokens int     `json:"total_tokens" yaml:"total_tokens"`
}

// CleaningStats reports what artifact cleaning changed. Lengths are in characters.
type CleaningStats struct {
	OriginalLength   int     `json:"original_length" yaml:"original_length"`
	FinalLength      int     `json:"final_length" yaml:"final_length"`
	LinesRemoved     int     `json:"lines_removed" yaml:"lines_removed"`
	ArtifactsRemoved int     `json:"artifacts_removed" yaml:"artifacts_removed"`
	ReductionPercent float64 `json:"reduction_percent" yaml:"reduction_percent"`
}

// CleaningResult is the output of artifact cleaning.
type CleaningResult struct {
	CleanedText string `json:"cleaned_text" yaml:"cleaned_text"`

	// RemovedPatterns holds human-readable descriptions of removed content,
	// capped at MaxRemovedPatterns entries.
	RemovedPatterns []string      `json:"removed_patterns" yaml:"removed_patterns"`
	Stats           CleaningStats `json:"stats" yaml:"stats"`
}

// MaxRemovedPatterns caps CleaningResult.RemovedPatterns.
const MaxRemovedPatterns = 50
