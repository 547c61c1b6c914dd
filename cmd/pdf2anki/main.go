// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf2anki CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/pdf2anki/internal/convert"
	"github.com/pdiddy/pdf2anki/internal/logging"
	"github.com/pdiddy/pdf2anki/internal/secrets"
	"github.com/pdiddy/pdf2anki/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	// cfg is the merged configuration: defaults, config file, environment, flags.
	cfg types.Config

	logger = zap.NewNop()
)

// rootCmd is the base command for the pdf2anki CLI.
var rootCmd = &cobra.Command{
	Use:   "pdf2anki",
	Short: "Turn PDF documents into Anki flashcards",
	Long: `pdf2anki converts PDF documents into study flashcards. Each pipeline
stage is a subcommand: convert turns PDFs into Markdown through a Marker
service, process cleans and chunks the Markdown, generate asks a language
model for cards per chunk and writes an Anki TSV file, and deck queries
and exports the cards stored so far. serve exposes the processing
functions over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger = logging.New(os.Stderr, verbose)

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}

		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		if cfg.Generation.APIKey == "" {
			cfg.Generation.APIKey = secrets.APIKey(loadedSecrets, cfg.Generation.Provider)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pdf2anki.yaml or ~/.config/pdf2anki/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	// .env must be in the environment before defaults read from it.
	if err := secrets.LoadEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf2anki")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf2anki"))
		}
	}

	viper.SetEnvPrefix("PDF2ANKI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers a default for every configuration key so that
// environment overrides are seen by Unmarshal. The unprefixed variables
// MARKER_API_BASE, LLM_API_BASE, and LLM_MODEL seed the defaults.
func setDefaults() {
	viper.SetDefault("conversion.engine", string(types.EngineMarker))
	viper.SetDefault("conversion.base_url", envOr("MARKER_API_BASE", "http://localhost:8001"))
	viper.SetDefault("conversion.convert_path", "/convert")
	viper.SetDefault("conversion.max_retries", 3)
	viper.SetDefault("conversion.image", convert.DefaultMarkerImage)
	viper.SetDefault("conversion.runtime", "")
	viper.SetDefault("conversion.output_dir", "outputs")
	viper.SetDefault("conversion.timeout", 10*time.Minute)
	viper.SetDefault("conversion.user_agent", "pdf2anki/"+version)

	viper.SetDefault("chunking.max_tokens", types.DefaultMaxTokens)
	viper.SetDefault("chunking.remove_images", false)
	viper.SetDefault("chunking.save_chunk_files", false)

	viper.SetDefault("generation.provider", string(types.ProviderOpenAI))
	viper.SetDefault("generation.model", envOr("LLM_MODEL", "llama-3.1-8b-instruct"))
	viper.SetDefault("generation.api_base", os.Getenv("LLM_API_BASE"))
	viper.SetDefault("generation.api_key", "")
	viper.SetDefault("generation.max_retries", 3)
	viper.SetDefault("generation.num_cards", 10)
	viper.SetDefault("generation.note_type", string(types.NoteBasic))
	viper.SetDefault("generation.focus", "mixed")
	viper.SetDefault("generation.concurrency", 4)

	viper.SetDefault("deck.dir", "deck")
	viper.SetDefault("deck.max_results", 50)

	viper.SetDefault("server.addr", ":8080")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// bindFlag ties a command flag to a configuration key so the flag wins
// only when set.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func bindPersistentFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
