package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"corpus/internal/extract"
	"corpus/internal/logger"
	"corpus/internal/normalize"
	"corpus/internal/pipeline"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks [pdf-file|directory...]",
	Short: "Export length-bounded paragraphs grouped by chapter",
	Long: `Group each document by chapter markers (CHƯƠNG n / CHAPTER n) and numbered
headings, split the content into sentences and merge them into paragraphs
of --min to --max words (default 300 to 700).

Each row holds the file name, chapter, heading, word count and paragraph.
Sentence runs that cannot form a paragraph inside the bounds are dropped
and counted in the summary line.`,
	Example: `  corpus chunks ./books -o chunks.xlsx
  corpus chunks book.pdf --min 200 --max 500 --workers 4`,
	RunE: runChunks,
}

func init() {
	rootCmd.AddCommand(chunksCmd)

	addPipelineFlags(chunksCmd)
	chunksCmd.Flags().Int("min", 0, "Minimum words per paragraph (default from config)")
	chunksCmd.Flags().Int("max", 0, "Maximum words per paragraph (default from config)")
	chunksCmd.Flags().String("default-chapter", "", "Chapter label for headings before the first chapter marker")
}

func runChunks(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("chunks")

	if cmd.Flags().Changed("min") {
		cfg.MinWords, _ = cmd.Flags().GetInt("min")
	}
	if cmd.Flags().Changed("max") {
		cfg.MaxWords, _ = cmd.Flags().GetInt("max")
	}
	if cmd.Flags().Changed("default-chapter") {
		cfg.DefaultChapter, _ = cmd.Flags().GetString("default-chapter")
	}
	if err := applyPipelineFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "chunks.xlsx"
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
		Int("min_words", cfg.MinWords).
		Int("max_words", cfg.MaxWords).
		Int("workers", cfg.Workers).
		Str("ocr", cfg.OCRProvider).
		Msg("Starting chunk export")

	p := pipeline.New(extract.New(ocrService), normalize.DefaultTable, pipeline.OptionsFromConfig(cfg))
	chunks, report, err := p.ProcessChapters(ctx, paths)
	if err != nil {
		return handleBatchError(err, log)
	}

	table := pipeline.ChunksTable("Chunks", chunks)
	if err := saveTable(ctx, table, cfg.OutputPath, cfg.BackupPath, log); err != nil {
		return handleBatchError(err, log)
	}

	fmt.Printf("Processed %d/%d documents (%d skipped), exported %d paragraphs, discarded %d sentence runs\n",
		report.Processed, report.Documents, report.Skipped, len(chunks), report.DiscardedRuns)
	return nil
}
