// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pdiddy/pdf2anki/internal/anki"
	"github.com/pdiddy/pdf2anki/internal/chunk"
	"github.com/pdiddy/pdf2anki/internal/clean"
	"github.com/pdiddy/pdf2anki/internal/deck"
	"github.com/pdiddy/pdf2anki/internal/semantic"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

type cleanRequest struct {
	Markdown     string `json:"markdown"`
	RemoveImages bool   `json:"remove_images"`
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, clean.Clean(req.Markdown, clean.Options{RemoveImages: req.RemoveImages}))
}

type chunkRequest struct {
	Markdown    string `json:"markdown"`
	Fingerprint string `json:"pdf_sha256"`
	MaxTokens   int    `json:"max_tokens"`
	// Clean runs artifact cleaning before chunking.
	Clean bool `json:"clean"`
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if !decode(w, r, &req) {
		return
	}
	if req.MaxTokens < 0 {
		jsonError(w, "max_tokens must not be negative", http.StatusBadRequest)
		return
	}
	md := req.Markdown
	if req.Clean {
		md = clean.Clean(md, clean.Options{}).CleanedText
	}
	writeJSON(w, http.StatusOK, chunk.New(s.est, req.MaxTokens).Assemble(md, req.Fingerprint))
}

type annotateRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, semantic.Annotate(req.Text))
}

type promptRequest struct {
	NoteType string `json:"note_type"`
	NumCards int    `json:"num_cards"`
	Focus    string `json:"focus"`
	Content  string `json:"content"`
	// Enrich appends key terms and definitions found in the content.
	Enrich bool `json:"enrich"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !decode(w, r, &req) {
		return
	}
	nt, err := types.ParseNoteType(req.NoteType)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.NumCards <= 0 {
		jsonError(w, "num_cards must be positive", http.StatusBadRequest)
		return
	}

	content := req.Content
	if req.Enrich {
		content = anki.EnrichContent(content, semantic.Annotate(content))
	}
	prompt, err := anki.BuildPrompt(nt, req.NumCards, req.Focus, content)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"system": anki.SystemPrompt, "prompt": prompt})
}

type parseRequest struct {
	Output   string `json:"output"`
	NoteType string `json:"note_type"`
}

func (s *Server) handleParseCards(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decode(w, r, &req) {
		return
	}
	nt, err := types.ParseNoteType(req.NoteType)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": anki.ParseCards(req.Output, nt)})
}

type tsvRequest struct {
	Cards []types.Card `json:"cards"`
	HTML  bool         `json:"html"`
}

func (s *Server) handleCardsTSV(w http.ResponseWriter, r *http.Request) {
	var req tsvRequest
	if !decode(w, r, &req) {
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	if err := anki.WriteTSV(w, req.Cards, req.HTML); err != nil {
		s.log.Sugar().Warnw("writing TSV", "error", err)
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.Documents(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []deck.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := deck.QueryOptions{
		Query:    q.Get("q"),
		NoteType: types.NoteType(q.Get("note_type")),
		Tag:      q.Get("tag"),
		Document: q.Get("document"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		opts.MaxResults = n
	}

	cards, err := s.store.Cards(r.Context(), opts)
	if err != nil {
		jsonError(w, "failed to query cards: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

// decode reads a JSON body into v and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
