// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/convert"
	"github.com/pdiddy/pdf2anki/internal/deck"
	"github.com/pdiddy/pdf2anki/internal/process"
	"github.com/pdiddy/pdf2anki/internal/tokens"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process <conversion-dir|marker.md>",
	Short: "Clean and chunk converted Markdown",
	Long: `Process removes conversion artifacts from marker.md, splits the cleaned
Markdown into token-bounded chunks at headings, paragraphs, and sentences,
and annotates each chunk. It writes cleaned.md, chunks.jsonl, and
processing_result.json next to the input (or to --out-dir) and records
the chunks in the deck store.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out-dir")
	noStore, _ := cmd.Flags().GetBool("no-store")

	est := tokens.Default()
	if !est.Precise() {
		logger.Warn("tokenizer unavailable, estimating tokens from character count")
	}

	ctx := context.Background()
	result, err := process.Process(ctx, process.Options{
		Input:          args[0],
		OutDir:         outDir,
		MaxTokens:      cfg.Chunking.MaxTokens,
		RemoveImages:   cfg.Chunking.RemoveImages,
		SaveChunkFiles: cfg.Chunking.SaveChunkFiles,
	}, est, os.Stdout, logger)
	if err != nil {
		return err
	}
	if noStore || result.TotalChunks == 0 {
		return nil
	}

	chunks, err := process.ReadChunks(result.ChunksJSONLPath)
	if err != nil {
		return err
	}
	doc := documentFor(filepath.Dir(result.ChunksJSONLPath), chunks[0].SourceRef.PDFFingerprint)
	if doc.SHA256 == process.UnknownFingerprint {
		logger.Warn("source fingerprint unknown, chunks not stored in deck")
		return nil
	}

	store, err := deck.Open(cfg.Deck)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveChunks(ctx, doc, chunks); err != nil {
		return err
	}
	logger.Debug("stored chunks", zap.String("document", doc.SHA256), zap.Int("chunks", len(chunks)))
	return nil
}

// documentFor builds the deck record of a conversion directory, reading
// source path and page count from meta.json when present.
func documentFor(dir, fingerprint string) deck.Document {
	doc := deck.Document{SHA256: fingerprint}
	data, err := os.ReadFile(filepath.Join(dir, convert.MetaFile))
	if err != nil {
		return doc
	}
	var meta types.ConversionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		logger.Warn("unreadable meta.json", zap.String("dir", dir), zap.Error(err))
		return doc
	}
	if meta.SourceSHA256 != "" && meta.SourceSHA256 != fingerprint {
		logger.Warn("meta.json fingerprint differs from chunks",
			zap.String("meta", meta.SourceSHA256), zap.String("chunks", fingerprint))
	}
	doc.SourcePath = meta.SourcePath
	doc.Pages = meta.Pages
	return doc
}

func init() {
	processCmd.Flags().String("out-dir", "", "output directory (default: the input's directory)")
	processCmd.Flags().Int("max-tokens", types.DefaultMaxTokens, "token budget per chunk")
	processCmd.Flags().Bool("remove-images", false, "strip Markdown image references")
	processCmd.Flags().Bool("save-chunks", false, "also write chunks/<id>.md files")
	processCmd.Flags().Bool("no-store", false, "do not record chunks in the deck store")

	bindFlag(processCmd, "chunking.max_tokens", "max-tokens")
	bindFlag(processCmd, "chunking.remove_images", "remove-images")
	bindFlag(processCmd, "chunking.save_chunk_files", "save-chunks")

	rootCmd.AddCommand(processCmd)
}
