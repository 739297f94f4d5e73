package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"corpus/internal/logger"
	"corpus/internal/sheets"
	"corpus/pkg/services"
)

// Column names of a summarization table.
const (
	ColumnSource  = "Văn bản gốc"
	ColumnSummary = "Văn bản tóm tắt"
)

// FailureMarker replaces the summary of a row whose attempts all failed.
const FailureMarker = "LỖI khi tóm tắt"

// Report counts the outcome of a batch.
type Report struct {
	Rows      int
	Succeeded int
	Failed    int
	Skipped   int
}

// Batch summarizes every row of a table.
type Batch struct {
	summarizer services.Summarizer
	log        zerolog.Logger
}

// NewBatch creates a Batch. Retries, if any, belong to summarizer.
func NewBatch(summarizer services.Summarizer) *Batch {
	return &Batch{
		summarizer: summarizer,
		log:        logger.WithComponent("summarize"),
	}
}

// Run writes a summary for each row into the summary column, adding the
// column if needed. A row whose summarizer call fails gets FailureMarker and
// the batch continues. Rows with an empty source are left blank. Only a
// missing source column or context cancellation stops the batch.
func (b *Batch) Run(ctx context.Context, table *sheets.Table) (Report, error) {
	const op = "Batch.Run"

	if err := table.RequireColumns(ColumnSource); err != nil {
		return Report{}, fmt.Errorf("%s: %w", op, err)
	}
	src := table.Column(ColumnSource)
	dst := table.AddColumn(ColumnSummary)

	report := Report{Rows: len(table.Rows)}
	for i := range table.Rows {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}

		article := strings.TrimSpace(table.Value(i, src))
		if article == "" {
			table.Set(i, dst, "")
			report.Skipped++
			continue
		}

		b.log.Info().
			Int("row", i+1).
			Int("rows", len(table.Rows)).
			Msg("Summarizing row")

		summary, err := b.summarizer.Summarize(ctx, article)
		if err != nil {
			if ctx.Err() != nil {
				return report, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			b.log.Error().
				Err(err).
				Int("row", i+1).
				Msg("Summarization failed")
			table.Set(i, dst, FailureMarker)
			report.Failed++
			continue
		}

		table.Set(i, dst, summary)
		report.Succeeded++
	}

	b.log.Info().
		Int("rows", report.Rows).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Summarization batch completed")

	return report, nil
}
