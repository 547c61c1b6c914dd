// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the document-processing functions over a small
// JSON HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/deck"
	"github.com/pdiddy/pdf2anki/internal/tokens"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// Server is the HTTP API server for pdf2anki.
type Server struct {
	router chi.Router
	est    *tokens.Estimator
	store  *deck.Store
	log    *zap.Logger
}

// New creates and configures the HTTP server. store may be nil, in which
// case the deck endpoints are not mounted.
func New(est *tokens.Estimator, store *deck.Store, log *zap.Logger) *Server {
	if est == nil {
		est = tokens.Heuristic()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{est: est, store: store, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/clean", s.handleClean)
		r.Post("/chunk", s.handleChunk)
		r.Post("/annotate", s.handleAnnotate)
		r.Post("/prompt", s.handlePrompt)
		r.Post("/cards/parse", s.handleParseCards)
		r.Post("/cards/tsv", s.handleCardsTSV)

		if s.store != nil {
			r.Get("/documents", s.handleListDocuments)
			r.Get("/cards", s.handleListCards)
		}
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"precise_tokens": s.est.Precise(),
	})
}

// RequestLogger logs incoming requests.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
