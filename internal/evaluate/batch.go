package evaluate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"corpus/internal/logger"
	"corpus/internal/sheets"
	"corpus/pkg/services"
)

// Input columns.
const (
	ColumnParagraph = "Đoạn văn"
	ColumnSummary   = "Tóm tắt"
	ColumnTitle     = "Tiêu đề đoạn văn"
	ColumnCourse    = "Tên giáo trình"
	ColumnAuthor    = "Tác giả"
)

// RequiredColumns must all be present before any row is evaluated.
var RequiredColumns = []string{ColumnParagraph, ColumnSummary, ColumnTitle, ColumnCourse, ColumnAuthor}

// OutputColumns are appended in this order.
var OutputColumns = []string{
	"Điểm tính trung thực",
	"Nhận xét tính trung thực",
	"Điểm tính mạch lạc",
	"Nhận xét mạch lạc",
	"Điểm tính liên quan",
	"Nhận xét tính liên quan",
	"Điểm trung bình cộng",
	"Nhận xét chung",
}

// FailureMarker is the overall comment of a row whose similarity could not be computed.
const FailureMarker = "LỖI khi đánh giá"

// Report counts the outcome of a batch.
type Report struct {
	Rows      int
	Evaluated int
	Failed    int
	Skipped   int
}

// Batch evaluates every row of a table.
type Batch struct {
	scorer services.SimilarityScorer
	log    zerolog.Logger
}

// NewBatch creates a Batch.
func NewBatch(scorer services.SimilarityScorer) *Batch {
	return &Batch{
		scorer: scorer,
		log:    logger.WithComponent("evaluate"),
	}
}

// Run appends the evaluation columns to table. A missing required column aborts
// before any row is touched. Rows with an empty paragraph or summary are left
// unscored. A similarity failure marks the row and the batch continues.
func (b *Batch) Run(ctx context.Context, table *sheets.Table) (Report, error) {
	const op = "Batch.Run"

	if err := table.RequireColumns(RequiredColumns...); err != nil {
		return Report{}, fmt.Errorf("%s: %w", op, err)
	}
	paragraph := table.Column(ColumnParagraph)
	summary := table.Column(ColumnSummary)

	out := make([]int, len(OutputColumns))
	for i, name := range OutputColumns {
		out[i] = table.AddColumn(name)
	}

	report := Report{Rows: len(table.Rows)}
	for i := range table.Rows {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}

		article := table.Value(i, paragraph)
		sum := table.Value(i, summary)
		if strings.TrimSpace(article) == "" || strings.TrimSpace(sum) == "" {
			b.log.Debug().Int("row", i+1).Msg("Empty paragraph or summary, skipping")
			for _, col := range out {
				table.Set(i, col, "")
			}
			report.Skipped++
			continue
		}

		similarity, err := b.scorer.Similarity(ctx, article, sum)
		if err != nil {
			if ctx.Err() != nil {
				return report, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			b.log.Error().
				Err(err).
				Int("row", i+1).
				Msg("Similarity failed")
			for _, col := range out[:len(out)-1] {
				table.Set(i, col, "")
			}
			table.Set(i, out[len(out)-1], FailureMarker)
			report.Failed++
			continue
		}

		r := Score(article, sum, similarity)
		values := []interface{}{
			r.Faithfulness,
			r.FaithfulnessComment,
			r.Coherence,
			r.CoherenceComment,
			r.Relevance,
			r.RelevanceComment,
			r.Average,
			r.Comment,
		}
		for j, col := range out {
			table.Set(i, col, values[j])
		}
		report.Evaluated++

		b.log.Debug().
			Int("row", i+1).
			Float64("similarity", similarity).
			Float64("average", r.Average).
			Msg("Row evaluated")
	}

	b.log.Info().
		Int("rows", report.Rows).
		Int("evaluated", report.Evaluated).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Evaluation batch completed")

	return report, nil
}
