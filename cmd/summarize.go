package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"corpus/internal/logger"
	"corpus/internal/sheets"
	"corpus/internal/summarize"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [input]",
	Short: "Summarize the \"Văn bản gốc\" column of a spreadsheet",
	Long: `Read a spreadsheet (.xlsx file or Google Sheets URL), summarize every row
of the "Văn bản gốc" column with an OpenAI chat model and write the results
to the "Văn bản tóm tắt" column.

Each row is tried --retries times (default 3), waiting --backoff seconds
(default 30) between attempts. A row that still fails is marked
"LỖI khi tóm tắt" and the batch continues.

Required environment variables:
  OPENAI_API_KEY - OpenAI API key
  OPENAI_MODEL   - chat model (default gpt-4o-mini)`,
	Example: `  # Summarize in place
  corpus summarize paragraphs.xlsx --prompt prompt.txt

  # Write to another file, retrying quickly
  corpus summarize paragraphs.xlsx -o summaries.xlsx --prompt prompt.txt --backoff 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)

	summarizeCmd.Flags().StringP("output", "o", "", "Output .xlsx file or Google Sheets URL (default: the input)")
	summarizeCmd.Flags().String("backup", "", "Backup .xlsx file used when the output cannot be written")
	summarizeCmd.Flags().StringP("prompt", "p", "", "File with the summarization instructions")
	summarizeCmd.Flags().String("model", "", "Chat model (default from config)")
	summarizeCmd.Flags().Int("retries", 0, "Attempts per row (default from config)")
	summarizeCmd.Flags().Int("backoff", -1, "Seconds between attempts (default from config)")
	summarizeCmd.Flags().Int("timeout", 0, "Timeout in seconds for the whole run (0 = none)")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("summarize")

	input, output, backup, err := tableLocations(cmd, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("prompt") {
		cfg.PromptFile, _ = cmd.Flags().GetString("prompt")
	}
	if cmd.Flags().Changed("model") {
		cfg.OpenAIModel, _ = cmd.Flags().GetString("model")
	}
	if err := applyRetryFlags(cmd); err != nil {
		return err
	}
	if err := cfg.ValidateOpenAI(); err != nil {
		return err
	}

	summarizer, err := summarize.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.PromptFile)
	if err != nil {
		return err
	}

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	store := sheets.NewRouterStore()
	table, err := store.Read(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to read input table: %w", err)
	}

	log.Info().
		Str("input", input).
		Str("output", output).
		Int("rows", len(table.Rows)).
		Str("model", cfg.OpenAIModel).
		Int("attempts", cfg.RetryCount).
		Dur("backoff", cfg.Backoff()).
		Msg("Starting summarization")

	batch := summarize.NewBatch(summarize.NewRetryingSummarizer(summarizer, retryPolicy(cfg)))
	report, err := batch.Run(ctx, table)
	if err != nil {
		return handleBatchError(err, log)
	}

	if err := saveTable(ctx, table, output, backup, log); err != nil {
		return handleBatchError(err, log)
	}

	fmt.Printf("Summarized %d/%d rows (%d failed, %d empty)\n",
		report.Succeeded, report.Rows, report.Failed, report.Skipped)
	return nil
}

// tableLocations resolves input, output and backup for the spreadsheet commands.
// The output defaults to the input.
func tableLocations(cmd *cobra.Command, args []string) (input, output, backup string, err error) {
	input = cfg.InputPath
	if len(args) == 1 {
		input = args[0]
	}
	if input == "" {
		return "", "", "", fmt.Errorf("no input table: pass a file or Google Sheets URL, or set CORPUS_INPUT_PATH")
	}

	output = cfg.OutputPath
	if cmd.Flags().Changed("output") {
		output, _ = cmd.Flags().GetString("output")
	}
	if output == "" {
		output = input
	}

	backup = cfg.BackupPath
	if cmd.Flags().Changed("backup") {
		backup, _ = cmd.Flags().GetString("backup")
	}
	return input, output, backup, nil
}

// applyRetryFlags copies explicitly set retry flags over the configuration.
func applyRetryFlags(cmd *cobra.Command) error {
	if cmd.Flags().Changed("retries") {
		cfg.RetryCount, _ = cmd.Flags().GetInt("retries")
	}
	if cmd.Flags().Changed("backoff") {
		cfg.BackoffSeconds, _ = cmd.Flags().GetInt("backoff")
	}
	return cfg.Validate()
}
