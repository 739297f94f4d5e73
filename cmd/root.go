package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"corpus/internal/config"
	"corpus/internal/logger"
)

var version = "1.0.0"

// cfg is loaded before every subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Corpus CLI - build a section and paragraph corpus from textbook PDFs",
	Long: `Corpus CLI turns Vietnamese textbook PDFs into spreadsheet corpora.

It extracts the text layer (falling back to OCR for scanned books), repairs
common mis-encodings, detects numbered headings and writes either the
sections of each book or length-bounded paragraphs grouped by chapter.
The summarize and evaluate commands then work on those spreadsheets.

Settings come from defaults, an optional config file (--config or
CORPUS_CONFIG), a .env file and the environment, in increasing priority.
Command flags override all of them.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, json or toml)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CORPUS_CONFIG")
	}

	loaded, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg = loaded

	runID := uuid.NewString()
	logger.WithRunID(runID)
	log := logger.WithComponent("cmd")
	log.Debug().
		Str("command", cmd.Name()).
		Str("config_file", path).
		Msg("Configuration loaded")

	return nil
}
