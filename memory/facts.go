package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/flowturn/llm"
	"github.com/BaSui01/flowturn/types"
)

// FactCandidate is one {key, value} pair proposed by an extraction pass.
type FactCandidate struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

// FactExtractor produces fact candidates from a window of raw history.
// Extraction always runs over exact wording, never over summarized text.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, window types.History) ([]FactCandidate, error)
}

// MergeFacts merges candidates into facts and returns a new map; the input
// is never mutated. The merge is idempotent: an identical candidate for an
// existing key changes nothing. A candidate whose key exists with a
// different value is a correction: the value and provenance are overwritten,
// the key is never duplicated. Duplicate keys within a single batch collapse
// to the last candidate before the merge applies.
func MergeFacts(facts types.Facts, candidates []FactCandidate, sourceTurn int) types.Facts {
	if len(candidates) == 0 {
		return facts.Clone()
	}
	// Collapse duplicate keys inside the batch first (last wins), so a
	// conflicting pair never counts as a correction against its own
	// intermediate value and re-merging an identical batch stays a no-op.
	collapsed := make(map[string]FactCandidate, len(candidates))
	for _, c := range candidates {
		if c.Key == "" {
			continue
		}
		collapsed[c.Key] = c
	}
	merged := facts.Clone()
	if merged == nil {
		merged = make(types.Facts, len(collapsed))
	}
	for key, c := range collapsed {
		if prev, ok := merged[key]; ok && prev.Value == c.Value {
			continue
		}
		merged[key] = types.FactRecord{
			Key:        c.Key,
			Value:      c.Value,
			SourceTurn: sourceTurn,
			Confidence: c.Confidence,
		}
	}
	return merged
}

const factExtractionPrompt = `Extract durable facts about the user and the conversation from the transcript below.
Return ONLY a JSON array of objects with fields "key", "value", and "confidence" (0..1).
Use stable snake_case keys so a later extraction of the same fact reuses the same key.
Return [] when the transcript adds no new facts.`

// LLMExtractor extracts facts with a JSON-output model prompt.
type LLMExtractor struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewLLMExtractor creates a model-backed fact extractor.
func NewLLMExtractor(provider llm.Provider, model string, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "fact_extractor")),
	}
}

// ExtractFacts runs one extraction pass over the raw window.
func (e *LLMExtractor) ExtractFacts(ctx context.Context, window types.History) ([]FactCandidate, error) {
	if len(window) == 0 {
		return nil, nil
	}

	var transcript strings.Builder
	for _, entry := range window {
		fmt.Fprintf(&transcript, "%s: %s\n", entry.Role, entry.Content)
	}

	resp, err := e.provider.Completion(ctx, &llm.ChatRequest{
		Model:       e.model,
		Temperature: 0,
		Messages: []types.Message{
			types.NewSystemMessage(factExtractionPrompt),
			types.NewUserMessage(transcript.String()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fact extraction call: %w", err)
	}

	candidates, err := parseFactCandidates(resp.First().Content)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("facts extracted", zap.Int("count", len(candidates)))
	return candidates, nil
}

// parseFactCandidates decodes the model output, tolerating markdown fences.
func parseFactCandidates(content string) ([]FactCandidate, error) {
	text := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	var candidates []FactCandidate
	if err := json.Unmarshal([]byte(text), &candidates); err != nil {
		return nil, fmt.Errorf("malformed fact extraction output: %w", err)
	}
	return candidates, nil
}
