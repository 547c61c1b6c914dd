// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf2anki/internal/anki"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

// Format names an export encoding.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an export format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTSV, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: use tsv, json, or yaml", s)
	}
}

const exportLimit = 100000

// ExportTSV writes matching cards as Anki-importable TSV. With html set,
// card fields are rendered from Markdown to HTML.
func (s *Store) ExportTSV(ctx context.Context, w io.Writer, opts QueryOptions, html bool) error {
	stored, err := s.exportCards(ctx, opts)
	if err != nil {
		return err
	}
	cards := make([]types.Card, len(stored))
	for i, sc := range stored {
		cards[i] = sc.Card
	}
	return anki.WriteTSV(w, cards, html)
}

// ExportJSON writes matching cards as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	cards, err := s.exportCards(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ExportYAML writes matching cards as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	cards, err := s.exportCards(ctx, opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cards)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportFile writes dir/export.<format> and returns its path.
func (s *Store) ExportFile(ctx context.Context, format Format, opts QueryOptions, html bool) (string, error) {
	path := filepath.Join(s.dir, "export."+string(format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case FormatTSV:
		err = s.ExportTSV(ctx, f, opts, html)
	case FormatJSON:
		err = s.ExportJSON(ctx, f, opts)
	case FormatYAML:
		err = s.ExportYAML(ctx, f, opts)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", err
	}
	return path, f.Close()
}

func (s *Store) exportCards(ctx context.Context, opts QueryOptions) ([]StoredCard, error) {
	opts.MaxResults = exportLimit
	cards, err := s.Cards(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	return cards, nil
}
