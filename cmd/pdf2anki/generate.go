// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/anki"
	"github.com/pdiddy/pdf2anki/internal/deck"
	"github.com/pdiddy/pdf2anki/internal/generate"
	"github.com/pdiddy/pdf2anki/internal/process"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

// CardsFile is the default TSV output name, written next to chunks.jsonl.
const CardsFile = "cards.tsv"

var generateCmd = &cobra.Command{
	Use:   "generate <processed-dir|chunks.jsonl>",
	Short: "Generate Anki cards from processed chunks",
	Long: `Generate spreads the requested number of cards over the document's
chunks, asks the configured language model for each chunk's share in
parallel, and writes the cards as an Anki-importable TSV file. The cards
replace any earlier cards of the same document in the deck store.

With --document the chunks are read from the deck store instead of a
file. With --script a bash script that sends the prompt with curl is
printed instead of calling a model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	document, _ := cmd.Flags().GetString("document")
	if (len(args) == 0) == (document == "") {
		return fmt.Errorf("provide either a processed directory or --document")
	}

	gen := cfg.Generation
	nt, err := types.ParseNoteType(string(gen.NoteType))
	if err != nil {
		return err
	}
	if gen.NumCards <= 0 {
		return fmt.Errorf("num-cards must be positive, got %d", gen.NumCards)
	}

	if script, _ := cmd.Flags().GetBool("script"); script {
		if document != "" {
			return fmt.Errorf("--script needs a processed directory or Markdown file")
		}
		return printScript(args[0], gen.NumCards, nt, gen.Focus)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		chunks  []types.Chunk
		outPath string
	)
	if document != "" {
		chunks, err = chunksFromDeck(ctx, document)
		outPath = filepath.Join(cfg.Deck.Dir, document[:min(12, len(document))]+"-"+CardsFile)
	} else {
		var chunksPath string
		chunksPath, err = resolveChunks(args[0])
		if err == nil {
			chunks, err = process.ReadChunks(chunksPath)
			outPath = filepath.Join(filepath.Dir(chunksPath), CardsFile)
		}
	}
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to generate from")
	}
	if o, _ := cmd.Flags().GetString("output"); o != "" {
		outPath = o
	}

	backend, err := generate.NewBackend(gen.AIConfig, &http.Client{Timeout: 5 * time.Minute})
	if err != nil {
		return err
	}

	logger.Info("generating cards",
		zap.String("provider", string(gen.Provider)),
		zap.String("model", gen.Model),
		zap.Int("num_cards", gen.NumCards),
		zap.Int("chunks", len(chunks)),
	)
	result, genErr := generate.Generate(ctx, backend, chunks, generate.Options{
		NumCards:    gen.NumCards,
		NoteType:    nt,
		Focus:       gen.Focus,
		Concurrency: gen.Concurrency,
		MaxRetries:  gen.MaxRetries,
		Log:         logger,
	})

	html, _ := cmd.Flags().GetBool("html")
	if err := writeCards(outPath, result.Cards, html); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Generated %d cards from %d chunks (%d failed) -> %s\n",
		len(result.Cards), result.ChunksPlanned, result.ChunksFailed, outPath)

	if genErr != nil {
		// A cancelled run keeps the partial TSV but leaves the deck untouched.
		return genErr
	}

	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		if err := storeRun(ctx, chunks, result, gen, nt, outPath); err != nil {
			return err
		}
	}

	if result.HasFailures() {
		return fmt.Errorf("%d chunk(s) failed generation", result.ChunksFailed)
	}
	return nil
}

// resolveChunks accepts chunks.jsonl itself or a directory containing it.
func resolveChunks(input string) (string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", input, err)
	}
	if info.IsDir() {
		return filepath.Join(input, process.ChunksFile), nil
	}
	return input, nil
}

func chunksFromDeck(ctx context.Context, document string) ([]types.Chunk, error) {
	store, err := deck.Open(cfg.Deck)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Chunks(ctx, document)
}

func writeCards(path string, cards []types.Card, html bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := anki.WriteTSV(f, cards, html); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func storeRun(ctx context.Context, chunks []types.Chunk, result generate.Result, gen types.GenerationConfig, nt types.NoteType, outPath string) error {
	fingerprint := chunks[0].SourceRef.PDFFingerprint
	if fingerprint == "" || fingerprint == process.UnknownFingerprint {
		logger.Warn("source fingerprint unknown, cards not stored in deck")
		return nil
	}

	store, err := deck.Open(cfg.Deck)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, err := store.SaveRun(ctx, documentFor(filepath.Dir(outPath), fingerprint), deck.Run{
		Model:        gen.Model,
		NoteType:     string(nt),
		Focus:        gen.Focus,
		Requested:    gen.NumCards,
		ChunksFailed: result.ChunksFailed,
	}, result.Cards)
	if err != nil {
		return err
	}
	logger.Debug("stored run", zap.String("run_id", runID), zap.String("document", fingerprint))
	return nil
}

// printScript writes a curl-based generation script for the cleaned
// Markdown of a processed directory, or for a Markdown file given directly.
func printScript(input string, n int, nt types.NoteType, focus string) error {
	mdPath := input
	if info, err := os.Stat(input); err == nil && info.IsDir() {
		mdPath = filepath.Join(input, process.CleanedFile)
	}
	if _, err := os.Stat(mdPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("markdown file %s not found", mdPath)
	}

	script, err := anki.PromptScript(mdPath, n, nt, focus)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, script)
	return err
}

func init() {
	generateCmd.Flags().Int("num-cards", 10, "total number of cards to generate")
	generateCmd.Flags().String("note-type", "basic", "note type: basic or cloze")
	generateCmd.Flags().String("focus", "mixed", "what the cards should focus on (mixed = general coverage)")
	generateCmd.Flags().Int("concurrency", 4, "maximum chunks in flight")
	generateCmd.Flags().String("provider", "openai", "model backend: openai, claude, or ollama")
	generateCmd.Flags().String("model", "", "model name")
	generateCmd.Flags().String("api-base", "", "endpoint root for OpenAI-compatible or Ollama servers")
	generateCmd.Flags().String("document", "", "read chunks of this document fingerprint from the deck store")
	generateCmd.Flags().StringP("output", "o", "", "TSV output path (default: cards.tsv next to chunks.jsonl)")
	generateCmd.Flags().Bool("html", false, "render card fields from Markdown to HTML")
	generateCmd.Flags().Bool("script", false, "print a curl script for the prompt instead of generating")
	generateCmd.Flags().Bool("no-store", false, "do not record cards in the deck store")

	bindFlag(generateCmd, "generation.num_cards", "num-cards")
	bindFlag(generateCmd, "generation.note_type", "note-type")
	bindFlag(generateCmd, "generation.focus", "focus")
	bindFlag(generateCmd, "generation.concurrency", "concurrency")
	bindFlag(generateCmd, "generation.provider", "provider")
	bindFlag(generateCmd, "generation.model", "model")
	bindFlag(generateCmd, "generation.api_base", "api-base")

	rootCmd.AddCommand(generateCmd)
}
