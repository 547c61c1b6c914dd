// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf2anki/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert <pdf|dir>...",
	Short: "Convert PDF files to Markdown",
	Long: `Convert uploads each PDF to a Marker service, pipes it through a local
Marker container image with --engine marker-local, or reads its text layer
with --engine textlayer, and writes marker.md and meta.json under
<output-dir>/conversions/<sha256>/. PDFs converted before are skipped.
Directories are expanded to the PDF files they contain.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	c, err := convert.New(cfg.Conversion, logger)
	if err != nil {
		return err
	}

	paths, err := collectPDFs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found in %s", strings.Join(args, ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := convert.ConvertBatch(ctx, c, paths, cfg.Conversion.OutputDir, os.Stdout, logger)
	if result.HasFailures() {
		return fmt.Errorf("%d PDF(s) failed conversion", result.Failed)
	}
	return nil
}

// collectPDFs expands directory arguments to their .pdf files, sorted by
// name. File arguments pass through unchanged.
func collectPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

func init() {
	convertCmd.Flags().String("engine", "marker", "conversion engine: marker, marker-local, or textlayer")
	convertCmd.Flags().String("base-url", "", "Marker service base URL")
	convertCmd.Flags().String("image", convert.DefaultMarkerImage, "container image for marker-local (PDF on stdin, Markdown on stdout)")
	convertCmd.Flags().String("runtime", "", "container runtime for marker-local: docker or podman (default: detect)")
	convertCmd.Flags().String("output-dir", "outputs", "root directory for conversions/")
	convertCmd.Flags().Int("max-retries", 3, "retries on 429 and 5xx responses")

	bindFlag(convertCmd, "conversion.engine", "engine")
	bindFlag(convertCmd, "conversion.base_url", "base-url")
	bindFlag(convertCmd, "conversion.image", "image")
	bindFlag(convertCmd, "conversion.runtime", "runtime")
	bindFlag(convertCmd, "conversion.output_dir", "output-dir")
	bindFlag(convertCmd, "conversion.max_retries", "max-retries")

	rootCmd.AddCommand(convertCmd)
}
