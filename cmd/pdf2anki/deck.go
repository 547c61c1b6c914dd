// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf2anki/internal/deck"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Query and export stored cards (list, runs, search, export)",
	Long: `Deck manages the local SQLite store of processed documents and their
generated cards. Use subcommands to list documents, inspect generation
runs, search cards, or export them.`,
}

// --- list subcommand ---

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents with chunk and card counts",
	Args:  cobra.NoArgs,
	RunE:  runDeckList,
}

func runDeckList(cmd *cobra.Command, args []string) error {
	store, err := deck.Open(cfg.Deck)
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := store.Documents(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if docs == nil {
			docs = []deck.DocumentSummary{}
		}
		return printJSON(docs)
	}
	if len(docs) == 0 {
		fmt.Println("No documents stored.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-40s  %5s  %6s  %5s  %s\n",
		"Document", "Source", "Pages", "Chunks", "Cards", "Updated")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, d := range docs {
		fmt.Fprintf(os.Stdout, "%-12s  %-40s  %5d  %6d  %5d  %s\n",
			clip(d.SHA256, 12), clip(d.SourcePath, 40), d.Pages, d.Chunks, d.Cards, d.UpdatedAt)
	}
	return nil
}

// --- runs subcommand ---

var deckRunsCmd = &cobra.Command{
	Use:   "runs <document>",
	Short: "Show the generation runs recorded for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckRuns,
}

func runDeckRuns(cmd *cobra.Command, args []string) error {
	store, err := deck.Open(cfg.Deck)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(context.Background(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if runs == nil {
			runs = []deck.Run{}
		}
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Printf("No runs recorded for %s.\n", args[0])
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-24s  %-6s  %9s  %9s  %6s  %s\n",
		"Run", "Model", "Type", "Requested", "Generated", "Failed", "Created")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-36s  %-24s  %-6s  %9d  %9d  %6d  %s\n",
			r.ID, clip(r.Model, 24), r.NoteType, r.Requested, r.Generated, r.ChunksFailed, r.CreatedAt)
	}
	return nil
}

// --- search subcommand ---

var deckSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored cards by text and filters",
	Long: `Search matches a case-insensitive substring against card questions,
answers, and extras, optionally narrowed by note type, tag, or document.`,
	RunE: runDeckSearch,
}

func runDeckSearch(cmd *cobra.Command, args []string) error {
	store, err := deck.Open(cfg.Deck)
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	cards, err := store.Cards(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(cards)
	}
	if len(cards) == 0 {
		fmt.Println("No cards found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-6s  %-50s  %-30s  %s\n", "Rank", "Type", "Front", "Back", "Document")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for i, c := range cards {
		back := c.Answer
		if c.NoteType == types.NoteCloze {
			back = c.Extra
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-6s  %-50s  %-30s  %s\n",
			i+1, c.NoteType, clip(oneLine(c.Question), 50), clip(oneLine(back), 30), clip(documentOf(c.Card), 12))
	}
	fmt.Fprintf(os.Stdout, "\n%d cards\n", len(cards))
	return nil
}

// --- export subcommand ---

var deckExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored cards to TSV, JSON, or YAML",
	Long: `Export writes matching cards to <deck-dir>/export.<format>, or to
stdout with --stdout. TSV output imports directly into Anki.`,
	RunE: runDeckExport,
}

func runDeckExport(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := deck.ParseFormat(formatName)
	if err != nil {
		return err
	}
	html, _ := cmd.Flags().GetBool("html")
	toStdout, _ := cmd.Flags().GetBool("stdout")

	store, err := deck.Open(cfg.Deck)
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if toStdout {
		switch format {
		case deck.FormatJSON:
			return store.ExportJSON(ctx, os.Stdout, opts)
		case deck.FormatYAML:
			return store.ExportYAML(ctx, os.Stdout, opts)
		default:
			return store.ExportTSV(ctx, os.Stdout, opts, html)
		}
	}

	path, err := store.ExportFile(ctx, format, opts, html)
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func queryOptsFromFlags(cmd *cobra.Command, args []string) (deck.QueryOptions, error) {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	noteType, _ := cmd.Flags().GetString("note-type")
	tag, _ := cmd.Flags().GetString("tag")
	document, _ := cmd.Flags().GetString("document")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := deck.QueryOptions{
		Query:      queryText,
		Tag:        tag,
		Document:   document,
		MaxResults: limit,
	}
	if noteType != "" {
		nt, err := types.ParseNoteType(noteType)
		if err != nil {
			return opts, err
		}
		opts.NoteType = nt
	}
	return opts, nil
}

func documentOf(c types.Card) string {
	if c.SourceRef == nil {
		return ""
	}
	return c.SourceRef.PDFFingerprint
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	deckCmd.PersistentFlags().String("deck-dir", "deck", "directory holding deck.db and exports")
	deckCmd.PersistentFlags().Int("max-results", 50, "default maximum number of query results")
	bindPersistentFlag(deckCmd, "deck.dir", "deck-dir")
	bindPersistentFlag(deckCmd, "deck.max_results", "max-results")

	deckListCmd.Flags().Bool("json", false, "output as JSON")
	deckRunsCmd.Flags().Bool("json", false, "output as JSON")

	for _, c := range []*cobra.Command{deckSearchCmd, deckExportCmd} {
		c.Flags().String("query", "", "substring filter on question, answer, and extra")
		c.Flags().String("note-type", "", "filter by note type: basic or cloze")
		c.Flags().String("tag", "", "filter by tag")
		c.Flags().String("document", "", "filter by document fingerprint")
		c.Flags().Int("limit", 0, "maximum results (0 = use default)")
	}
	deckSearchCmd.Flags().Bool("json", false, "output results as JSON")

	deckExportCmd.Flags().String("format", "tsv", "export format: tsv, json, or yaml")
	deckExportCmd.Flags().Bool("html", false, "render TSV fields from Markdown to HTML")
	deckExportCmd.Flags().Bool("stdout", false, "write to stdout instead of a file")

	deckCmd.AddCommand(deckListCmd)
	deckCmd.AddCommand(deckRunsCmd)
	deckCmd.AddCommand(deckSearchCmd)
	deckCmd.AddCommand(deckExportCmd)

	rootCmd.AddCommand(deckCmd)
}
