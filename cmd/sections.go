package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"corpus/internal/extract"
	"corpus/internal/logger"
	"corpus/internal/normalize"
	"corpus/internal/pipeline"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections [pdf-file|directory...]",
	Short: "Export the numbered sections of textbook PDFs",
	Long: `Detect numbered headings (1., 2.3, 2.3.1 ...) in each document and write
one row per section: ordinal, title, word count and content.

Sections shorter than --min-words words (default 50) are dropped. Documents
without a text layer are sent to the configured OCR provider.`,
	Example: `  # All PDFs of a directory into one workbook
  corpus sections ./books -o sections.xlsx

  # Straight into a Google Sheet, with a local backup
  corpus sections book.pdf -o "https://docs.google.com/spreadsheets/d/<id>/edit" --backup sections_backup.xlsx`,
	RunE: runSections,
}

func init() {
	rootCmd.AddCommand(sectionsCmd)

	addPipelineFlags(sectionsCmd)
	sectionsCmd.Flags().Int("min-words", 0, "Minimum words for a section to be exported (default from config)")
}

func runSections(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("sections")

	if err := applyPipelineFlags(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("min-words") {
		cfg.SectionMinWords, _ = cmd.Flags().GetInt("min-words")
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "sections.xlsx"
	}

	paths, err := collectPDFs(args, cfg)
	if err != nil {
		return err
	}

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	ocrService, closeOCR, err := createPipelineOCRService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeOCR()

	log.Info().
		Int("documents", len(paths)).
		Str("output", cfg.OutputPath).
		Int("min_words", cfg.SectionMinWords).
		Int("workers", cfg.Workers).
		Str("ocr", cfg.OCRProvider).
		Msg("Starting section export")

	p := pipeline.New(extract.New(ocrService), normalize.DefaultTable, pipeline.OptionsFromConfig(cfg))
	sections, report, err := p.ProcessFlat(ctx, paths)
	if err != nil {
		return handleBatchError(err, log)
	}

	table := pipeline.SectionsTable("Sections", sections)
	if err := saveTable(ctx, table, cfg.OutputPath, cfg.BackupPath, log); err != nil {
		return handleBatchError(err, log)
	}

	fmt.Printf("Processed %d/%d documents (%d skipped), exported %d sections, dropped %d short sections\n",
		report.Processed, report.Documents, report.Skipped, len(sections), report.DroppedSections)
	return nil
}
