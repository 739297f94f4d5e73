// Package evaluate scores summaries against their source paragraphs for
// faithfulness, coherence and relevance.
package evaluate

import (
	"math"
	"strings"
)

// Faithfulness comments by score band.
const (
	FaithfulComplete = "Hoàn toàn trung thực, không có sự khác biệt."
	FaithfulMostly   = "Bản tóm tắt khá trung thực, có thể bỏ sót một số chi tiết."
	FaithfulPartly   = "Bản tóm tắt thiếu trung thực, nhiều thông tin bị sai lệch."
	FaithfulNot      = "Thông tin sai lệch nghiêm trọng."
)

// Coherence comments.
const (
	CoherentComplete = "Hoàn toàn mạch lạc."
	CoherentMostly   = "Mạch lạc, nhưng có thể cải thiện sự liên kết giữa các câu."
)

// Relevance comments.
const (
	RelevantComplete = "Bản tóm tắt giữ lại các ý chính."
	RelevantMostly   = "Có một số chi tiết không quan trọng."
)

// coherentWords is the summary length above which a summary counts as fully coherent.
const coherentWords = 50

// Result is the evaluation of one (paragraph, summary) pair.
type Result struct {
	Faithfulness        float64
	FaithfulnessComment string
	Coherence           int
	CoherenceComment    string
	Relevance           int
	RelevanceComment    string
	Average             float64
	Comment             string
}

// Score evaluates summary against article given their semantic similarity in [0,1].
func Score(article, summary string, similarity float64) Result {
	var r Result

	r.Faithfulness = round2(clamp01(similarity) * 5)
	switch {
	case r.Faithfulness >= 4.5:
		r.FaithfulnessComment = FaithfulComplete
	case r.Faithfulness >= 3.5:
		r.FaithfulnessComment = FaithfulMostly
	case r.Faithfulness >= 2.5:
		r.FaithfulnessComment = FaithfulPartly
	default:
		r.FaithfulnessComment = FaithfulNot
	}

	summaryWords := len(strings.Fields(summary))
	articleWords := len(strings.Fields(article))

	if summaryWords > coherentWords {
		r.Coherence, r.CoherenceComment = 5, CoherentComplete
	} else {
		r.Coherence, r.CoherenceComment = 4, CoherentMostly
	}

	if float64(summaryWords) > float64(articleWords)/2 {
		r.Relevance, r.RelevanceComment = 5, RelevantComplete
	} else {
		r.Relevance, r.RelevanceComment = 4, RelevantMostly
	}

	r.Average = round2((r.Faithfulness + float64(r.Coherence) + float64(r.Relevance)) / 3)
	r.Comment = r.FaithfulnessComment + " " + r.CoherenceComment + " " + r.RelevanceComment
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
