// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns PDF files into raw Markdown with pluggable engines
// and stores each result under conversions/<sha256>/ together with a
// meta.json record.
package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

const (
	// ConversionsDir is the subdirectory of the output root holding one
	// directory per source fingerprint.
	ConversionsDir = "conversions"

	MarkdownFile = "marker.md"
	MetaFile     = "meta.json"
	errorLogFile = "error.log"

	maxErrorBody = 1000
)

// now is replaced in tests.
var now = time.Now

// Conversion is the output of one engine run.
type Conversion struct {
	Markdown string
	// Pages is zero when the engine does not report a page count.
	Pages  int
	Engine types.EngineInfo
}

// Converter transforms a PDF file into Markdown text. Marker over HTTP, a
// local Marker container, and the embedded text layer implement it.
type Converter interface {
	Convert(ctx context.Context, pdfPath string) (Conversion, error)
}

// New returns the converter selected by cfg.Engine.
func New(cfg types.ConversionConfig, log *zap.Logger) (Converter, error) {
	switch cfg.Engine {
	case types.EngineMarker, "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("marker engine requires a base URL")
		}
		return NewMarkerConverter(cfg, log), nil
	case types.EngineMarkerLocal:
		rt, err := lookupRuntime(cfg.Runtime)
		if err != nil {
			return nil, err
		}
		return NewLocalMarkerConverter(rt, cfg.Image, cfg.Timeout, log)
	case types.EngineTextLayer:
		return TextLayerConverter{}, nil
	default:
		return nil, fmt.Errorf("unsupported conversion engine %q: use marker, marker-local, or textlayer", cfg.Engine)
	}
}

// StatusError reports a conversion service failure with its HTTP status.
type StatusError struct {
	Code     int
	Body     string
	Attempts int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("conversion service returned %d after %d attempt(s): %s", e.Code, e.Attempts, e.Body)
}

// Result locates the files written for one PDF.
type Result struct {
	SHA256       string
	Dir          string
	MarkdownPath string
	MetaPath     string
	Skipped      bool
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of PDFs processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any PDF failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertPDF converts one PDF and writes outRoot/conversions/<sha256>/
// marker.md and meta.json. If marker.md already exists the conversion is
// skipped. On failure an error.log with the failure evidence is left in the
// conversion directory; a failure to write it is logged to log.
func ConvertPDF(ctx context.Context, c Converter, pdfPath, outRoot string, w io.Writer, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !strings.EqualFold(filepath.Ext(pdfPath), ".pdf") {
		return Result{}, fmt.Errorf("invalid PDF path %s: expected a .pdf file", pdfPath)
	}
	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s: %w", pdfPath, err)
	}

	sum, err := FileSHA256(absPath)
	if err != nil {
		return Result{}, err
	}

	dir := filepath.Join(outRoot, ConversionsDir, sum)
	res := Result{
		SHA256:       sum,
		Dir:          dir,
		MarkdownPath: filepath.Join(dir, MarkdownFile),
		MetaPath:     filepath.Join(dir, MetaFile),
	}

	if _, err := os.Stat(res.MarkdownPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", filepath.Base(pdfPath))
		res.Skipped = true
		return res, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("creating %s: %w", dir, err)
	}

	start := now()
	conv, err := c.Convert(ctx, absPath)
	if err != nil {
		writeErrorLog(filepath.Join(dir, errorLogFile), err, log)
		return res, fmt.Errorf("converting %s: %w", pdfPath, err)
	}
	elapsed := now().Sub(start)

	pages := conv.Pages
	if pages == 0 {
		pages = PageCount(absPath)
	}

	if err := os.WriteFile(res.MarkdownPath, []byte(conv.Markdown), 0o644); err != nil {
		return res, fmt.Errorf("writing markdown: %w", err)
	}

	meta := types.ConversionMeta{
		SourcePath:   absPath,
		SourceSHA256: sum,
		Pages:        pages,
		Engine:       conv.Engine,
		ElapsedSec:   elapsed.Seconds(),
		CreatedAt:    start.UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return res, fmt.Errorf("marshaling meta: %w", err)
	}
	if err := os.WriteFile(res.MetaPath, data, 0o644); err != nil {
		return res, fmt.Errorf("writing meta: %w", err)
	}

	fmt.Fprintf(w, "converted: %s -> %s (%d pages)\n", filepath.Base(pdfPath), sum[:12], pages)
	return res, nil
}

// ConvertBatch converts each PDF in turn, printing per-file status to w and
// returning a summary. It stops early when ctx is cancelled.
func ConvertBatch(ctx context.Context, c Converter, pdfPaths []string, outRoot string, w io.Writer, log *zap.Logger) BatchResult {
	var result BatchResult
	for _, p := range pdfPaths {
		if ctx.Err() != nil {
			break
		}
		res, err := ConvertPDF(ctx, c, p, outRoot, w, log)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", filepath.Base(p), err)
			result.Failed++
		case res.Skipped:
			result.Skipped++
		default:
			result.Converted++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// FileSHA256 returns the hex SHA-256 digest of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PageCount reads the page tree of a PDF. It returns 0 when the file cannot
// be parsed.
func PageCount(path string) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return r.NumPage()
}

// errorEvidence is written as error.log after a failed conversion.
type errorEvidence struct {
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseText string `json:"response_text,omitempty"`
	Error        string `json:"error,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
}

func writeErrorLog(path string, err error, log *zap.Logger) {
	ev := errorEvidence{Error: err.Error()}
	var se *StatusError
	if errors.As(err, &se) {
		ev = errorEvidence{StatusCode: se.Code, ResponseText: se.Body, Attempts: se.Attempts}
	}
	data, mErr := json.MarshalIndent(ev, "", "  ")
	if mErr != nil {
		log.Warn("encoding error log", zap.String("path", path), zap.Error(mErr))
		return
	}
	if wErr := os.WriteFile(path, data, 0o644); wErr != nil {
		log.Warn("writing error log", zap.String("path", path), zap.Error(wErr))
	}
}
