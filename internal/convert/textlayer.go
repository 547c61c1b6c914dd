// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// TextLayerConverter extracts the embedded text layer of a PDF without a
// conversion service. Output has no headings, only one block per page
// preceded by a <!-- page N --> marker, so it suits text-born PDFs rather
// than scans.
type TextLayerConverter struct{}

// Convert reads every page's plain text.
func (TextLayerConverter) Convert(ctx context.Context, pdfPath string) (Conversion, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return Conversion{}, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return Conversion{}, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Conversion{}, fmt.Errorf("reading page %d: %w", i, err)
		}
		fmt.Fprintf(&b, "<!-- page %d -->\n\n%s\n\n", i, strings.TrimSpace(text))
	}

	return Conversion{
		Markdown: b.String(),
		Pages:    pages,
		Engine:   types.EngineInfo{Name: "textlayer", Version: "ledongthuc/pdf"},
	}, nil
}
