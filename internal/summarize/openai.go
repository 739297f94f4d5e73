// Package summarize fills the summary column of a paragraph table through a
// chat model, retrying each row under a fixed-delay policy.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"corpus/internal/logger"
)

// Sampling parameters for summary generation.
const (
	Temperature float32 = 0.3
	TopP        float32 = 0.9
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("no response choices from model")

// OpenAISummarizer summarizes one paragraph per chat completion request. The
// instructions file is sent as the system message.
type OpenAISummarizer struct {
	client       *openai.Client
	model        string
	systemPrompt string
	log          zerolog.Logger
}

// NewOpenAISummarizer creates a summarizer reading its system prompt from promptFile.
func NewOpenAISummarizer(apiKey, model, promptFile string) (*OpenAISummarizer, error) {
	const op = "NewOpenAISummarizer"

	if apiKey == "" {
		return nil, fmt.Errorf("%s: OPENAI_API_KEY is required", op)
	}
	prompt, err := LoadPrompt(promptFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewOpenAISummarizerWithClient(openai.NewClient(apiKey), model, prompt), nil
}

// NewOpenAISummarizerWithClient creates a summarizer with an explicit client (for testing).
func NewOpenAISummarizerWithClient(client *openai.Client, model, systemPrompt string) *OpenAISummarizer {
	return &OpenAISummarizer{
		client:       client,
		model:        model,
		systemPrompt: systemPrompt,
		log:          logger.WithComponent("summarizer"),
	}
}

// LoadPrompt reads the summarization instructions.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("prompt file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Summarize implements services.Summarizer.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	const op = "Summarize"

	s.log.Debug().
		Str("model", s.model).
		Int("text_length", len(text)).
		Msg("Sending summarization request")

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: Temperature,
		TopP:        TopP,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: s.systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt(s.systemPrompt, text),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func userPrompt(instructions, article string) string {
	var b strings.Builder
	if instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("Văn bản gốc:\n")
	b.WriteString(article)
	b.WriteString("\n\nHãy viết một bản tóm tắt ngắn gọn, rõ ràng và đầy đủ thông tin chính.")
	return b.String()
}
