package services

import "context"

// Summarizer produces a summary of a source paragraph.
type Summarizer interface {
	// Summarize returns the summary text for the given article.
	Summarize(ctx context.Context, text string) (string, error)
}

// SimilarityScorer measures semantic similarity between two texts.
type SimilarityScorer interface {
	// Similarity returns a score in [0,1], 1 meaning identical meaning.
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// SimilarityFunc adapts a plain function to the SimilarityScorer interface.
type SimilarityFunc func(ctx context.Context, a, b string) (float64, error)

// Similarity calls f.
func (f SimilarityFunc) Similarity(ctx context.Context, a, b string) (float64, error) {
	return f(ctx, a, b)
}
