// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/container"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

// DefaultMarkerImage is run by the marker-local engine when no image is
// configured.
const DefaultMarkerImage = "marker-pdf:latest"

// lookupRuntime is replaced in tests.
var lookupRuntime = container.Lookup

// LocalMarkerConverter converts PDFs by piping them through a Marker
// container image on docker or podman. The image reads the PDF on stdin and
// writes Markdown on stdout.
type LocalMarkerConverter struct {
	Runtime container.Runtime
	Image   string
	// Timeout bounds one container run; zero means no limit.
	Timeout time.Duration
	Log     *zap.Logger
}

// NewLocalMarkerConverter checks that image exists in rt before returning.
func NewLocalMarkerConverter(rt container.Runtime, image string, timeout time.Duration, log *zap.Logger) (*LocalMarkerConverter, error) {
	if image == "" {
		image = DefaultMarkerImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("marker image not available in %s: %w", rt.Name(), err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalMarkerConverter{Runtime: rt, Image: image, Timeout: timeout, Log: log}, nil
}

// Convert runs the image once for pdfPath.
func (m *LocalMarkerConverter) Convert(ctx context.Context, pdfPath string) (Conversion, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return Conversion{}, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	m.Log.Debug("running marker container",
		zap.String("runtime", m.Runtime.Name()),
		zap.String("image", m.Image),
		zap.String("pdf", pdfPath),
	)
	var out bytes.Buffer
	if err := m.Runtime.Run(ctx, m.Image, nil, f, &out); err != nil {
		return Conversion{}, fmt.Errorf("converting %s with %s: %w", pdfPath, m.Image, err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return Conversion{}, fmt.Errorf("marker image %s produced empty output for %s", m.Image, pdfPath)
	}

	return Conversion{
		Markdown: out.String(),
		Engine:   types.EngineInfo{Name: "marker-local", Version: m.Image},
	}, nil
}
