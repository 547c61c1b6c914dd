// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/deck"
	"github.com/pdiddy/pdf2anki/internal/server"
	"github.com/pdiddy/pdf2anki/internal/tokens"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the processing functions over HTTP",
	Long: `Serve starts a JSON HTTP API exposing cleaning, chunking, annotation,
prompt building, and card parsing. Unless --no-deck is given, read-only
routes over the deck store are mounted under /v1/documents and /v1/cards.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	noDeck, _ := cmd.Flags().GetBool("no-deck")

	var store *deck.Store
	if !noDeck {
		var err error
		store, err = deck.Open(cfg.Deck)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(tokens.Default(), store, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.Bool("deck", store != nil))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Bool("no-deck", false, "do not mount the deck routes")
	bindFlag(serveCmd, "server.addr", "addr")

	rootCmd.AddCommand(serveCmd)
}
