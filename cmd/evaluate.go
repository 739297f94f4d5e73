package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"corpus/internal/evaluate"
	"corpus/internal/logger"
	"corpus/internal/sheets"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [input]",
	Short: "Score summaries for faithfulness, coherence and relevance",
	Long: `Read a spreadsheet with the columns "Đoạn văn", "Tóm tắt", "Tiêu đề đoạn văn",
"Tên giáo trình" and "Tác giả" and append eight evaluation columns.

Faithfulness is the embedding similarity of paragraph and summary on a
0-5 scale. Coherence and relevance are judged from summary length. Rows
whose similarity cannot be computed are marked "LỖI khi đánh giá".

Required environment variables:
  OPENAI_API_KEY - OpenAI API key (embeddings)`,
	Example: `  corpus evaluate exam.xlsx
  corpus evaluate exam.xlsx -o scored.xlsx --embedding-model text-embedding-3-large`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("output", "o", "", "Output .xlsx file or Google Sheets URL (default: the input)")
	evaluateCmd.Flags().String("backup", "", "Backup .xlsx file used when the output cannot be written")
	evaluateCmd.Flags().String("embedding-model", "", "Embedding model (default from config)")
	evaluateCmd.Flags().Int("retries", 0, "Attempts per row (default from config)")
	evaluateCmd.Flags().Int("backoff", -1, "Seconds between attempts (default from config)")
	evaluateCmd.Flags().Int("timeout", 0, "Timeout in seconds for the whole run (0 = none)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("evaluate")

	input, output, backup, err := tableLocations(cmd, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.EmbeddingModel, _ = cmd.Flags().GetString("embedding-model")
	}
	if err := applyRetryFlags(cmd); err != nil {
		return err
	}
	if err := cfg.ValidateOpenAI(); err != nil {
		return err
	}

	scorer, err := evaluate.NewEmbeddingSimilarity(cfg.OpenAIAPIKey, cfg.EmbeddingModel, retryPolicy(cfg))
	if err != nil {
		return err
	}

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	table, err := sheets.NewRouterStore().Read(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to read input table: %w", err)
	}

	log.Info().
		Str("input", input).
		Str("output", output).
		Int("rows", len(table.Rows)).
		Str("embedding_model", cfg.EmbeddingModel).
		Msg("Starting evaluation")

	report, err := evaluate.NewBatch(scorer).Run(ctx, table)
	if err != nil {
		return handleBatchError(err, log)
	}

	if err := saveTable(ctx, table, output, backup, log); err != nil {
		return handleBatchError(err, log)
	}

	fmt.Printf("Evaluated %d/%d rows (%d failed, %d empty)\n", report.Evaluated, report.Rows, report.Failed, report.Skipped)
	return nil
}
