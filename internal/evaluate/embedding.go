package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"corpus/internal/logger"
	"corpus/internal/summarize"
)

// ErrNoEmbedding is returned when the embeddings response lacks a vector.
var ErrNoEmbedding = errors.New("embedding missing from response")

// EmbeddingSimilarity scores two texts by the cosine similarity of their
// embeddings, clamped to [0,1].
type EmbeddingSimilarity struct {
	client *openai.Client
	model  openai.EmbeddingModel
	policy summarize.Policy
	log    zerolog.Logger
}

// NewEmbeddingSimilarity creates a scorer using the given embedding model.
func NewEmbeddingSimilarity(apiKey, model string, policy summarize.Policy) (*EmbeddingSimilarity, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewEmbeddingSimilarity: OPENAI_API_KEY is required")
	}
	return NewEmbeddingSimilarityWithClient(openai.NewClient(apiKey), model, policy), nil
}

// NewEmbeddingSimilarityWithClient creates a scorer with an explicit client (for testing).
func NewEmbeddingSimilarityWithClient(client *openai.Client, model string, policy summarize.Policy) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{
		client: client,
		model:  openai.EmbeddingModel(model),
		policy: policy,
		log:    logger.WithComponent("similarity"),
	}
}

// Similarity implements services.SimilarityScorer. Both texts are embedded in
// one request; the request is retried under the scorer's policy.
func (s *EmbeddingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	const op = "Similarity"

	vectors, err := summarize.Do(ctx, s.policy, s.log, func() ([][]float32, error) {
		return s.embed(ctx, a, b)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return clamp01(Cosine(vectors[0], vectors[1])), nil
}

func (s *EmbeddingSimilarity) embed(ctx context.Context, texts ...string) ([][]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: s.model,
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: input %d", ErrNoEmbedding, i)
		}
	}
	return vectors, nil
}

// Cosine returns the cosine similarity of a and b, or 0 if either has zero
// length or norm or their dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
