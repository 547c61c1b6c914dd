// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/pdf2anki/internal/httputil"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// fakeConverter implements Converter for testing. It returns canned Markdown
// or an error, depending on configuration.
type fakeConverter struct {
	output string
	pages  int
	err    error
	calls  int
}

func (f *fakeConverter) Convert(ctx context.Context, pdfPath string) (Conversion, error) {
	f.calls++
	if f.err != nil {
		return Conversion{}, f.err
	}
	return Conversion{
		Markdown: f.output,
		Pages:    f.pages,
		Engine:   types.EngineInfo{Name: "fake", Version: "1"},
	}, nil
}

// writePDF creates a placeholder PDF file and returns its path.
func writePDF(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvertPDF(t *testing.T) {
	tests := []struct {
		name      string
		converter *fakeConverter
		preCreate bool // create marker.md before running
		wantErr   bool
		wantLog   string
	}{
		{
			name:      "successful conversion",
			converter: &fakeConverter{output: "# Title\n\nContent here.", pages: 7},
			wantLog:   "converted:",
		},
		{
			name:      "skip existing markdown",
			converter: &fakeConverter{output: "should not be called"},
			preCreate: true,
			wantLog:   "skipped:",
		},
		{
			name:      "conversion failure",
			converter: &fakeConverter{err: errors.New("service down")},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			pdfPath := writePDF(t, tmp, "paper.pdf", "fake pdf")
			sum, err := FileSHA256(pdfPath)
			require.NoError(t, err)
			outRoot := filepath.Join(tmp, "outputs")
			convDir := filepath.Join(outRoot, ConversionsDir, sum)

			if tt.preCreate {
				require.NoError(t, os.MkdirAll(convDir, 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(convDir, MarkdownFile), []byte("existing"), 0o644))
			}

			var log bytes.Buffer
			res, err := ConvertPDF(context.Background(), tt.converter, pdfPath, outRoot, &log, zap.NewNop())

			if tt.wantErr {
				require.Error(t, err)
				assert.FileExists(t, filepath.Join(convDir, "error.log"))
				assert.NoFileExists(t, filepath.Join(convDir, MarkdownFile))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, log.String(), tt.wantLog)
			assert.Equal(t, sum, res.SHA256)
			assert.Equal(t, tt.preCreate, res.Skipped)

			if tt.preCreate {
				assert.Zero(t, tt.converter.calls)
				return
			}

			md, err := os.ReadFile(res.MarkdownPath)
			require.NoError(t, err)
			assert.Equal(t, "# Title\n\nContent here.", string(md))

			var meta types.ConversionMeta
			data, err := os.ReadFile(res.MetaPath)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &meta))
			assert.Equal(t, sum, meta.SourceSHA256)
			assert.Equal(t, 7, meta.Pages)
			assert.Equal(t, "fake", meta.Engine.Name)
			assert.True(t, filepath.IsAbs(meta.SourcePath))
			assert.NotEmpty(t, meta.CreatedAt)
		})
	}
}

func TestConvertPDF_RejectsNonPDF(t *testing.T) {
	tmp := t.TempDir()
	path := writePDF(t, tmp, "notes.txt", "text")

	_, err := ConvertPDF(context.Background(), &fakeConverter{}, path, tmp, io.Discard, nil)
	assert.ErrorContains(t, err, "expected a .pdf file")
}

func TestConvertPDF_StatusErrorEvidence(t *testing.T) {
	tmp := t.TempDir()
	pdfPath := writePDF(t, tmp, "paper.pdf", "fake pdf")
	sum, err := FileSHA256(pdfPath)
	require.NoError(t, err)

	conv := &fakeConverter{err: &StatusError{Code: 503, Body: "overloaded", Attempts: 4}}
	_, err = ConvertPDF(context.Background(), conv, pdfPath, tmp, io.Discard, zap.NewNop())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Code)

	data, err := os.ReadFile(filepath.Join(tmp, ConversionsDir, sum, "error.log"))
	require.NoError(t, err)
	var ev errorEvidence
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, errorEvidence{StatusCode: 503, ResponseText: "overloaded", Attempts: 4}, ev)
}

func TestConvertPDF_ErrorLogWriteFailureIsLogged(t *testing.T) {
	tmp := t.TempDir()
	pdfPath := writePDF(t, tmp, "paper.pdf", "fake pdf")
	sum, err := FileSHA256(pdfPath)
	require.NoError(t, err)
	// A directory in place of error.log makes the write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, ConversionsDir, sum, errorLogFile), 0o755))

	core, logs := observer.New(zap.WarnLevel)
	_, err = ConvertPDF(context.Background(), &fakeConverter{err: errors.New("service down")}, pdfPath, tmp, io.Discard, zap.New(core))
	require.ErrorContains(t, err, "service down")

	entries := logs.FilterMessage("writing error log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(tmp, ConversionsDir, sum, errorLogFile), entries[0].ContextMap()["path"])
}

// selectiveConverter fails for configured paths.
type selectiveConverter struct {
	errors map[string]error
}

func (s *selectiveConverter) Convert(ctx context.Context, pdfPath string) (Conversion, error) {
	if err, ok := s.errors[filepath.Base(pdfPath)]; ok {
		return Conversion{}, err
	}
	return Conversion{Markdown: "# " + filepath.Base(pdfPath), Pages: 1}, nil
}

func TestConvertBatch(t *testing.T) {
	tmp := t.TempDir()
	outRoot := filepath.Join(tmp, "outputs")

	// One will succeed, one will be pre-existing, one will fail.
	a := writePDF(t, tmp, "a.pdf", "pdf a")
	b := writePDF(t, tmp, "b.pdf", "pdf b")
	c := writePDF(t, tmp, "c.pdf", "pdf c")

	sumB, err := FileSHA256(b)
	require.NoError(t, err)
	dirB := filepath.Join(outRoot, ConversionsDir, sumB)
	require.NoError(t, os.MkdirAll(dirB, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, MarkdownFile), []byte("existing"), 0o644))

	conv := &selectiveConverter{errors: map[string]error{"c.pdf": errors.New("bad pdf")}}

	var log bytes.Buffer
	result := ConvertBatch(context.Background(), conv, []string{a, b, c}, outRoot, &log, zap.NewNop())

	assert.Equal(t, BatchResult{Converted: 1, Skipped: 1, Failed: 1}, result)
	assert.True(t, result.HasFailures())
	assert.Equal(t, 3, result.Total())
	assert.Contains(t, log.String(), "Batch summary: 1 converted, 1 skipped, 1 failed (total: 3)")
	assert.Contains(t, log.String(), "failed:  c.pdf")
}

func TestMarkerConverter(t *testing.T) {
	tests := []struct {
		name      string
		responses []func(w http.ResponseWriter)
		want      Conversion
		wantCode  int
		wantCalls int32
	}{
		{
			name: "success envelope",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) {
					w.Header().Set("Content-Type", "application/json")
					w.Write([]byte(`{"status":"Success","result":{"markdown":"# Doc\n\nBody","page_count":3}}`))
				},
			},
			want:      Conversion{Markdown: "# Doc\n\nBody", Pages: 3, Engine: types.EngineInfo{Name: "marker", Version: "api"}},
			wantCalls: 1,
		},
		{
			name: "raw body fallback",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) { w.Write([]byte("# Plain markdown")) },
			},
			want:      Conversion{Markdown: "# Plain markdown", Engine: types.EngineInfo{Name: "marker", Version: "api"}},
			wantCalls: 1,
		},
		{
			name: "retries transient failures",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) },
				func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) },
				func(w http.ResponseWriter) {
					w.Write([]byte(`{"status":"Success","result":{"markdown":"ok"}}`))
				},
			},
			want:      Conversion{Markdown: "ok", Engine: types.EngineInfo{Name: "marker", Version: "api"}},
			wantCalls: 3,
		},
		{
			name: "gives up after max retries",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) {
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte("busy"))
				},
			},
			wantCode:  http.StatusServiceUnavailable,
			wantCalls: 4,
		},
		{
			name: "client error is not retried",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnsupportedMediaType) },
			},
			wantCode:  http.StatusUnsupportedMediaType,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)

				assert.Equal(t, "/convert", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				file, header, err := r.FormFile("file")
				if assert.NoError(t, err) {
					data, _ := io.ReadAll(file)
					assert.Equal(t, "fake pdf", string(data))
					assert.Equal(t, "paper.pdf", header.Filename)
					assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
				}

				idx := int(n) - 1
				if idx >= len(tt.responses) {
					idx = len(tt.responses) - 1
				}
				tt.responses[idx](w)
			}))
			defer ts.Close()

			pdfPath := writePDF(t, t.TempDir(), "paper.pdf", "fake pdf")
			m := &MarkerConverter{BaseURL: ts.URL + "/", MaxRetries: 3, Client: ts.Client()}

			got, err := m.Convert(context.Background(), pdfPath)

			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if tt.wantCode != 0 {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantCode, se.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarkerConverter_StatusErrorDetails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 1500)))
	}))
	defer ts.Close()

	pdfPath := writePDF(t, t.TempDir(), "paper.pdf", "fake pdf")
	m := &MarkerConverter{BaseURL: ts.URL, ConvertPath: "/convert", MaxRetries: 1, Client: ts.Client()}

	_, err := m.Convert(context.Background(), pdfPath)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Attempts)
	assert.Len(t, se.Body, 1000)
}

func TestNew(t *testing.T) {
	c, err := New(types.ConversionConfig{Engine: types.EngineMarker, BaseURL: "http://localhost:8001"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MarkerConverter{}, c)

	c, err = New(types.ConversionConfig{Engine: types.EngineTextLayer}, nil)
	require.NoError(t, err)
	assert.IsType(t, TextLayerConverter{}, c)

	_, err = New(types.ConversionConfig{}, nil)
	assert.Error(t, err)

	_, err = New(types.ConversionConfig{Engine: "ocr"}, nil)
	assert.Error(t, err)
}

func TestPageCount_InvalidFile(t *testing.T) {
	path := writePDF(t, t.TempDir(), "broken.pdf", "not a pdf")
	assert.Zero(t, PageCount(path))
}
