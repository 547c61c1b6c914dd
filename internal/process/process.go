// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package process runs cleaning, chunking, and annotation over a converted
// document and writes the intermediate artifacts that card generation reads.
package process

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/chunk"
	"github.com/pdiddy/pdf2anki/internal/clean"
	"github.com/pdiddy/pdf2anki/internal/convert"
	"github.com/pdiddy/pdf2anki/internal/semantic"
	"github.com/pdiddy/pdf2anki/internal/tokens"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

const (
	CleanedFile = "cleaned.md"
	ChunksFile  = "chunks.jsonl"
	ResultFile  = "processing_result.json"
	chunksDir   = "chunks"

	// UnknownFingerprint stands in when no source digest can be found.
	UnknownFingerprint = "unknown"

	semanticSampleSize = 10
)

// Options controls a processing run.
type Options struct {
	// Input is a marker.md file or a directory containing one.
	Input string
	// OutDir defaults to the directory holding the input Markdown.
	OutDir         string
	MaxTokens      int
	RemoveImages   bool
	SaveChunkFiles bool
}

// Summary is the one-line JSON record printed after a run.
type Summary struct {
	CleanedMDPath        string `json:"cleaned_md_path"`
	ChunksJSONLPath      string `json:"chunks_jsonl_path"`
	ProcessingResultPath string `json:"processing_result_path"`
	TotalChunks          int    `json:"total_chunks"`
	TotalTokens          int    `json:"total_tokens"`
}

// Process cleans and chunks the input Markdown and writes cleaned.md,
// chunks.jsonl, optional chunks/<id>.md files, and processing_result.json
// to the output directory.
func Process(ctx context.Context, opts Options, est *tokens.Estimator, w io.Writer, log *zap.Logger) (types.ProcessingResult, error) {
	if log == nil {
		log = zap.NewNop()
	}

	mdPath, convDir, err := resolveInput(opts.Input)
	if err != nil {
		return types.ProcessingResult{}, err
	}

	outDir := convDir
	if opts.OutDir != "" {
		if outDir, err = filepath.Abs(opts.OutDir); err != nil {
			return types.ProcessingResult{}, fmt.Errorf("resolving %s: %w", opts.OutDir, err)
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return types.ProcessingResult{}, fmt.Errorf("creating output directory: %w", err)
	}

	fingerprint := Fingerprint(convDir)
	if fingerprint == UnknownFingerprint {
		log.Warn("could not determine PDF fingerprint, using placeholder", zap.String("dir", convDir))
	}

	raw, err := os.ReadFile(mdPath)
	if err != nil {
		return types.ProcessingResult{}, fmt.Errorf("reading markdown %s: %w", mdPath, err)
	}
	log.Info("read markdown", zap.String("path", mdPath), zap.Int("bytes", len(raw)))

	cleaned := clean.Clean(string(raw), clean.Options{RemoveImages: opts.RemoveImages})
	res := types.ProcessingResult{
		CleanedMDPath:   filepath.Join(outDir, CleanedFile),
		ChunksJSONLPath: filepath.Join(outDir, ChunksFile),
		CleaningStats:   cleaned.Stats,
	}
	if err := os.WriteFile(res.CleanedMDPath, []byte(cleaned.CleanedText), 0o644); err != nil {
		return res, fmt.Errorf("writing cleaned markdown: %w", err)
	}
	log.Info("cleaned markdown",
		zap.Int("artifacts_removed", cleaned.Stats.ArtifactsRemoved),
		zap.Float64("reduction_percent", cleaned.Stats.ReductionPercent))

	if err := ctx.Err(); err != nil {
		return res, err
	}

	chunker := chunk.New(est, opts.MaxTokens)
	chunked := chunker.Assemble(cleaned.CleanedText, fingerprint)
	res.TotalChunks = chunked.TotalChunks
	res.TotalTokens = chunked.TotalTokens
	if chunked.TotalChunks > 0 {
		res.AvgTokensPerChunk = math.Round(float64(chunked.TotalTokens)/float64(chunked.TotalChunks)*100) / 100
	}

	if err := WriteChunks(res.ChunksJSONLPath, chunked.Chunks); err != nil {
		return res, err
	}
	log.Info("chunked markdown",
		zap.Int("max_tokens", chunker.MaxTokens()),
		zap.Int("chunks", chunked.TotalChunks),
		zap.Int("tokens", chunked.TotalTokens))

	if opts.SaveChunkFiles {
		dir := filepath.Join(outDir, chunksDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("creating chunks directory: %w", err)
		}
		for _, ch := range chunked.Chunks {
			if err := os.WriteFile(filepath.Join(dir, ch.ID+".md"), []byte(ch.Text), 0o644); err != nil {
				return res, fmt.Errorf("writing chunk %s: %w", ch.ID, err)
			}
		}
	}

	res.SemanticSample = make(map[string]types.SemanticInfo)
	for i, ch := range chunked.Chunks {
		if i == semanticSampleSize {
			break
		}
		res.SemanticSample[ch.ID] = semantic.AnnotateChunk(ch)
	}

	resultPath := filepath.Join(outDir, ResultFile)
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return res, fmt.Errorf("marshaling processing result: %w", err)
	}
	if err := os.WriteFile(resultPath, data, 0o644); err != nil {
		return res, fmt.Errorf("writing processing result: %w", err)
	}

	line, err := json.Marshal(Summary{
		CleanedMDPath:        res.CleanedMDPath,
		ChunksJSONLPath:      res.ChunksJSONLPath,
		ProcessingResultPath: resultPath,
		TotalChunks:          res.TotalChunks,
		TotalTokens:          res.TotalTokens,
	})
	if err != nil {
		return res, fmt.Errorf("marshaling summary: %w", err)
	}
	fmt.Fprintln(w, string(line))
	return res, nil
}

// resolveInput returns the Markdown path and the directory that holds it.
func resolveInput(input string) (mdPath, dir string, err error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", input, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("invalid input path %s: %w", input, err)
	}

	switch {
	case info.IsDir():
		mdPath, dir = filepath.Join(abs, convert.MarkdownFile), abs
	case filepath.Base(abs) == convert.MarkdownFile:
		mdPath, dir = abs, filepath.Dir(abs)
	default:
		return "", "", fmt.Errorf("invalid input path %s: expected %s or a directory containing it", input, convert.MarkdownFile)
	}

	if _, err := os.Stat(mdPath); err != nil {
		return "", "", fmt.Errorf("%s not found in %s", convert.MarkdownFile, dir)
	}
	return mdPath, dir, nil
}

// Fingerprint returns the source PDF digest for a conversion directory. It
// prefers meta.json, then the path element following "conversions", and
// finally UnknownFingerprint.
func Fingerprint(convDir string) string {
	if data, err := os.ReadFile(filepath.Join(convDir, convert.MetaFile)); err == nil {
		var meta types.ConversionMeta
		if json.Unmarshal(data, &meta) == nil && meta.SourceSHA256 != "" {
			return meta.SourceSHA256
		}
	}

	for dir := filepath.Clean(convDir); ; {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if filepath.Base(parent) == convert.ConversionsDir {
			return filepath.Base(dir)
		}
		dir = parent
	}
	return UnknownFingerprint
}

// WriteChunks writes one JSON object per line.
func WriteChunks(path string, chunks []types.Chunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, ch := range chunks {
		if err := enc.Encode(ch); err != nil {
			return fmt.Errorf("encoding chunk %s: %w", ch.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadChunks loads a chunks.jsonl file. Blank lines are ignored.
func ReadChunks(path string) ([]types.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var chunks []types.Chunk
	dec := json.NewDecoder(f)
	for {
		var ch types.Chunk
		err := dec.Decode(&ch)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s (chunk %d): %w", path, len(chunks)+1, err)
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}
