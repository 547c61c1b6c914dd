// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EngineInfo names the conversion engine that produced a Markdown file.
type EngineInfo struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// ConversionMeta is written as meta.json next to each converted document.
type ConversionMeta struct {
	SourcePath   string     `json:"source_path" yaml:"source_path"`
	SourceSHA256 string     `json:"source_sha256" yaml:"source_sha256"`
	Pages        int        `json:"pages" yaml:"pages"`
	Engine       EngineInfo `json:"engine" yaml:"engine"`
	ElapsedSec   float64    `json:"elapsed_sec" yaml:"elapsed_sec"`
	CreatedAt    string     `json:"created_at" yaml:"created_at"`
}

// ProcessingResult summarizes one run of clean, chunk, annotate over a
// converted document. It is written as processing_result.json.
type ProcessingResult struct {
	CleanedMDPath     string        `json:"cleaned_md_path" yaml:"cleaned_md_path"`
	ChunksJSONLPath   string        `json:"chunks_jsonl_path" yaml:"chunks_jsonl_path"`
	TotalChunks       int           `json:"total_chunks" yaml:"total_chunks"`
	TotalTokens       int           `json:"total_tokens" yaml:"total_tokens"`
	AvgTokensPerChunk float64       `json:"avg_tokens_per_chunk" yaml:"avg_tokens_per_chunk"`
	CleaningStats     CleaningStats `json:"cleaning_stats" yaml:"cleaning_stats"`

	// SemanticSample maps chunk IDs of the first chunks to their annotations.
	SemanticSample map[string]SemanticInfo `json:"semantic_structures_sample" yaml:"semantic_structures_sample"`
}
