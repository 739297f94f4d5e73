package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"corpus/internal/config"
	"corpus/internal/ocr"
	"corpus/internal/sheets"
	"corpus/internal/summarize"
)

// createContextWithTimeout creates a context with timeout and signal handling.
// A non-positive timeout means no deadline.
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeoutSecs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// addPipelineFlags registers the flags shared by sections and chunks.
func addPipelineFlags(c *cobra.Command) {
	c.Flags().StringP("output", "o", "", "Output .xlsx file or Google Sheets URL")
	c.Flags().String("backup", "", "Backup .xlsx file used when the output cannot be written")
	c.Flags().Int("workers", 0, "Documents processed concurrently (default from config)")
	c.Flags().String("ocr", "", "OCR provider: tesseract, vision, documentai or none")
	c.Flags().Int("timeout", 0, "Timeout in seconds for the whole run (0 = none)")
}

// applyPipelineFlags copies explicitly set flags over the loaded configuration.
func applyPipelineFlags(c *cobra.Command, conf *config.Config) error {
	if c.Flags().Changed("output") {
		conf.OutputPath, _ = c.Flags().GetString("output")
	}
	if c.Flags().Changed("backup") {
		conf.BackupPath, _ = c.Flags().GetString("backup")
	}
	if c.Flags().Changed("workers") {
		conf.Workers, _ = c.Flags().GetInt("workers")
	}
	if c.Flags().Changed("ocr") {
		conf.OCRProvider, _ = c.Flags().GetString("ocr")
	}
	return conf.Validate()
}

// collectPDFs expands directory arguments to the PDFs they contain, sorted by
// name. With no arguments the configured input path is used.
func collectPDFs(args []string, conf *config.Config) ([]string, error) {
	if len(args) == 0 && conf.InputPath != "" {
		args = []string{conf.InputPath}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no input documents: pass PDF files or directories, or set CORPUS_INPUT_PATH")
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// Missing files are reported and skipped by the pipeline.
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// createPipelineOCRService builds the OCR fallback of the batch commands. A
// missing local engine only affects scanned documents, so it degrades to a
// nil service with a warning instead of failing the run.
func createPipelineOCRService(ctx context.Context, conf *config.Config, log zerolog.Logger) (ocr.OCRService, func(), error) {
	service, closeFn, err := createOCRService(ctx, conf, log)
	if err != nil && errors.Is(err, ocr.ErrEngineUnavailable) {
		log.Warn().
			Err(err).
			Str("provider", conf.OCRProvider).
			Msg("OCR engine unavailable, scanned documents will be skipped")
		return nil, func() {}, nil
	}
	return service, closeFn, err
}

// createOCRService builds the configured OCR provider. For provider none it
// returns a nil service, and with it the extractor reports scans as empty.
func createOCRService(ctx context.Context, conf *config.Config, log zerolog.Logger) (ocr.OCRService, func(), error) {
	noop := func() {}

	switch conf.OCRProvider {
	case config.OCRProviderNone:
		log.Warn().Msg("OCR disabled, scanned documents will be skipped")
		return nil, noop, nil

	case config.OCRProviderTesseract:
		service, err := ocr.NewTesseractOCRService(ocr.TesseractConfig{
			Language:    conf.OCRLanguage,
			EngineMode:  conf.OCREngineMode,
			PageSegMode: conf.OCRPageSegMode,
			DPI:         conf.OCRDPI,
		})
		if err != nil {
			if errors.Is(err, ocr.ErrEngineUnavailable) {
				return nil, noop, fmt.Errorf("tesseract OCR is not available. Install tesseract (with the %q language data) and poppler-utils, "+
					"or choose another provider with --ocr: %w", conf.OCRLanguage, err)
			}
			return nil, noop, fmt.Errorf("failed to create OCR service: %w", err)
		}
		return service, noop, nil

	case config.OCRProviderVision:
		service, err := ocr.NewGoogleVisionOCRService(ctx, conf.OCRLanguageHints)
		if err != nil {
			return nil, noop, credentialsError(err)
		}
		return service, closeWith(service.Close, log), nil

	case config.OCRProviderDocumentAI:
		service, err := ocr.NewDocumentAIOCRService(ctx, ocr.DocumentAIConfig{
			ProjectID:     conf.GoogleCloudProject,
			Location:      conf.GoogleCloudLocation,
			ProcessorID:   conf.DocumentAIProcessorID,
			LanguageHints: conf.OCRLanguageHints,
		})
		if err != nil {
			if errors.Is(err, ocr.ErrInvalidConfiguration) {
				return nil, noop, fmt.Errorf("Document AI needs GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID: %w", err)
			}
			return nil, noop, credentialsError(err)
		}
		return service, closeWith(service.Close, log), nil
	}

	return nil, noop, fmt.Errorf("unknown OCR provider %q", conf.OCRProvider)
}

func closeWith(closeFn func() error, log zerolog.Logger) func() {
	return func() {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("Failed to close OCR client")
		}
	}
}

func credentialsError(err error) error {
	if errors.Is(err, ocr.ErrMissingCredentials) {
		return fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n"+
			"1. GOOGLE_APPLICATION_CREDENTIALS points to a readable service account file, or\n"+
			"2. GOOGLE_CREDENTIALS holds the inline JSON, or\n"+
			"3. Application Default Credentials are configured (gcloud auth application-default login)\n\n"+
			"Original error: %w", err)
	}
	return fmt.Errorf("failed to create OCR service: %w", err)
}

// saveTable writes table to the configured output with backup fallback.
func saveTable(ctx context.Context, table *sheets.Table, output, backup string, log zerolog.Logger) error {
	written, err := sheets.SaveWithBackup(ctx, sheets.NewRouterStore(), output, backup, table)
	if err != nil {
		return err
	}
	if written != output {
		log.Warn().
			Str("output", output).
			Str("backup", written).
			Msg("Results saved to backup location")
		fmt.Fprintf(os.Stderr, "Output could not be written, results saved to %s\n", written)
		return nil
	}
	log.Info().
		Str("output", written).
		Int("rows", len(table.Rows)).
		Msg("Results saved")
	return nil
}

// retryPolicy converts the configured retry settings.
func retryPolicy(conf *config.Config) summarize.Policy {
	return summarize.Policy{Attempts: conf.RetryCount, Delay: conf.Backoff()}
}

// handleBatchError provides user-friendly error messages for run failures
func handleBatchError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Run failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, sheets.ErrMissingColumns):
		return fmt.Errorf("input table is missing required columns: %w", err)
	case errors.Is(err, sheets.ErrPersistenceFailed):
		return fmt.Errorf("results could not be saved to the output or the backup location: %w", err)
	default:
		return err
	}
}
