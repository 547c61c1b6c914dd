// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/httputil"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

const defaultConvertPath = "/convert"

// MarkerConverter uploads PDFs to a Marker conversion service.
type MarkerConverter struct {
	BaseURL     string
	ConvertPath string
	MaxRetries  int
	Client      *http.Client
	Log         *zap.Logger
}

// NewMarkerConverter builds a converter from configuration.
func NewMarkerConverter(cfg types.ConversionConfig, log *zap.Logger) *MarkerConverter {
	client := &http.Client{Timeout: cfg.Timeout}
	return &MarkerConverter{
		BaseURL:     cfg.BaseURL,
		ConvertPath: cfg.ConvertPath,
		MaxRetries:  cfg.MaxRetries,
		Client:      client,
		Log:         log,
	}
}

// markerResponse is the JSON envelope returned on success.
type markerResponse struct {
	Status string `json:"status"`
	Result *struct {
		Markdown  string `json:"markdown"`
		PageCount int    `json:"page_count"`
	} `json:"result"`
}

// Convert posts the PDF as multipart field "file" and returns the Markdown.
// A body that is not the Success envelope is used verbatim.
func (m *MarkerConverter) Convert(ctx context.Context, pdfPath string) (Conversion, error) {
	body, contentType, err := multipartPDF(pdfPath)
	if err != nil {
		return Conversion{}, err
	}

	path := m.ConvertPath
	if path == "" {
		path = defaultConvertPath
	}
	url := strings.TrimRight(m.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Conversion{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := m.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, maxRetries, m.Log)
	if err != nil {
		return Conversion{}, fmt.Errorf("calling conversion service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Conversion{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		attempts := 1
		if httputil.Retryable(resp.StatusCode) {
			attempts = maxRetries + 1
		}
		text := string(data)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return Conversion{}, &StatusError{Code: resp.StatusCode, Body: text, Attempts: attempts}
	}

	conv := Conversion{
		Markdown: string(data),
		Engine:   types.EngineInfo{Name: "marker", Version: "api"},
	}
	var env markerResponse
	if err := json.Unmarshal(data, &env); err == nil && env.Status == "Success" && env.Result != nil {
		conv.Markdown = env.Result.Markdown
		conv.Pages = env.Result.PageCount
	}
	return conv, nil
}

func multipartPDF(pdfPath string) ([]byte, string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(pdfPath)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
