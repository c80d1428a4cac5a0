package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/flowturn/llm"
	"github.com/BaSui01/flowturn/types"
)

// Summarizer compresses conversation spans into summary text.
type Summarizer interface {
	// SummarizeTurns compresses a span of raw history entries.
	SummarizeTurns(ctx context.Context, entries types.History) (string, error)

	// FoldChunks compresses a sequence of same-level chunks into one
	// higher-level summary.
	FoldChunks(ctx context.Context, chunks []types.SummaryChunk) (string, error)
}

const summarizeTurnsPrompt = `Summarize the conversation excerpt below in a few sentences.
Preserve decisions, user preferences, and open questions. Do not invent details.`

const foldChunksPrompt = `The numbered items below are chronological summaries of earlier parts of one conversation.
Merge them into a single shorter summary that preserves decisions, user preferences, and open questions.`

// LLMSummarizer produces summaries via the reasoning-model collaborator.
type LLMSummarizer struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewLLMSummarizer creates a model-backed summarizer.
func NewLLMSummarizer(provider llm.Provider, model string, logger *zap.Logger) *LLMSummarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMSummarizer{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "summarizer")),
	}
}

// SummarizeTurns compresses a span of raw history entries.
func (s *LLMSummarizer) SummarizeTurns(ctx context.Context, entries types.History) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("empty summarization span")
	}

	var transcript strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&transcript, "%s: %s\n", entry.Role, entry.Content)
	}
	return s.complete(ctx, summarizeTurnsPrompt, transcript.String())
}

// FoldChunks compresses same-level chunks into one higher-level summary.
func (s *LLMSummarizer) FoldChunks(ctx context.Context, chunks []types.SummaryChunk) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("empty fold input")
	}

	var body strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&body, "%d. (turns %d-%d) %s\n", i+1, chunk.Span.Start, chunk.Span.End, chunk.Text)
	}
	return s.complete(ctx, foldChunksPrompt, body.String())
}

func (s *LLMSummarizer) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := s.provider.Completion(ctx, &llm.ChatRequest{
		Model:       s.model,
		Temperature: 0,
		Messages: []types.Message{
			types.NewSystemMessage(system),
			types.NewUserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarization call: %w", err)
	}

	text := strings.TrimSpace(resp.First().Content)
	if text == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return text, nil
}
