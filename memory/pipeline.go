package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/flowturn/types"
)

// Stage names the independently gated curation stages.
type Stage string

const (
	StageFacts       Stage = "facts"
	StageSummarize   Stage = "summarize"
	StageResummarize Stage = "resummarize"
)

// Config bounds the pipeline.
type Config struct {
	// FactWindow is how many recent raw history entries the extraction pass
	// sees.
	FactWindow int `yaml:"fact_window" json:"fact_window"`
	// SummarizeEvery is the number of turns past the last level-0 boundary
	// that triggers a new level-0 chunk.
	SummarizeEvery int `yaml:"summarize_every" json:"summarize_every"`
	// CompactThreshold is the chunk count at one level that triggers folding
	// into the next level.
	CompactThreshold int `yaml:"compact_threshold" json:"compact_threshold"`
}

// DefaultConfig returns the default pipeline bounds.
func DefaultConfig() Config {
	return Config{
		FactWindow:       8,
		SummarizeEvery:   6,
		CompactThreshold: 4,
	}
}

// Outcome is one stage's explicit result. A failed stage leaves its slice of
// the memory state unchanged; the turn still completes.
type Outcome struct {
	Stage   Stage
	Changed bool
	Err     error
}

// Pipeline runs the post-turn curation stages.
type Pipeline struct {
	extractor  FactExtractor
	summarizer Summarizer
	cfg        Config
	logger     *zap.Logger
}

// NewPipeline creates a curation pipeline. Extractor and summarizer may be
// nil, which disables their stages.
func NewPipeline(extractor FactExtractor, summarizer Summarizer, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FactWindow <= 0 {
		cfg.FactWindow = DefaultConfig().FactWindow
	}
	if cfg.SummarizeEvery <= 0 {
		cfg.SummarizeEvery = DefaultConfig().SummarizeEvery
	}
	if cfg.CompactThreshold <= 0 {
		cfg.CompactThreshold = DefaultConfig().CompactThreshold
	}
	return &Pipeline{
		extractor:  extractor,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "memory_pipeline")),
	}
}

// Curate runs the enabled stages over the appended history and returns the
// updated memory state plus per-stage outcomes. The input state is never
// mutated. A nil stage allow-list enables every stage.
func (p *Pipeline) Curate(ctx context.Context, mem types.MemoryState, history types.History, stages []string) (types.MemoryState, []Outcome) {
	allowed := stageSet(stages)
	state := mem.Clone()
	var outcomes []Outcome

	if allowed[StageFacts] {
		outcomes = append(outcomes, p.runStage(StageFacts, func() (bool, error) {
			return p.curateFacts(ctx, &state, history)
		}))
	}
	if allowed[StageSummarize] {
		outcomes = append(outcomes, p.runStage(StageSummarize, func() (bool, error) {
			return p.curateSummary(ctx, &state, history)
		}))
	}
	if allowed[StageResummarize] {
		outcomes = append(outcomes, p.runStage(StageResummarize, func() (bool, error) {
			return p.compact(ctx, &state)
		}))
	}

	return state, outcomes
}

// runStage isolates one stage: errors and panics are captured into the
// outcome, logged, and never abort the turn.
func (p *Pipeline) runStage(stage Stage, fn func() (bool, error)) (out Outcome) {
	out.Stage = stage
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("stage panicked: %v", r)
			out.Changed = false
		}
		if out.Err != nil {
			p.logger.Warn("memory stage failed",
				zap.String("stage", string(stage)),
				zap.Error(out.Err),
			)
		}
	}()
	out.Changed, out.Err = fn()
	return out
}

func (p *Pipeline) curateFacts(ctx context.Context, state *types.MemoryState, history types.History) (bool, error) {
	if p.extractor == nil {
		return false, nil
	}
	window := history.Tail(p.cfg.FactWindow)
	candidates, err := p.extractor.ExtractFacts(ctx, window)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}

	// Provenance points at the turn just resolved.
	sourceTurn := state.TurnIndex - 1
	if sourceTurn < 0 {
		sourceTurn = 0
	}
	before := len(state.Facts)
	merged := MergeFacts(state.Facts, candidates, sourceTurn)
	changed := len(merged) != before || !equalFacts(state.Facts, merged)
	state.Facts = merged
	return changed, nil
}

func (p *Pipeline) curateSummary(ctx context.Context, state *types.MemoryState, history types.History) (bool, error) {
	if p.summarizer == nil {
		return false, nil
	}
	covered := state.Summary.CoveredThrough()
	if state.TurnIndex-covered < p.cfg.SummarizeEvery {
		return false, nil
	}

	span := types.TurnSpan{Start: covered, End: state.TurnIndex}
	entries := history.SinceTurn(span.Start)
	if len(entries) == 0 {
		return false, fmt.Errorf("no history entries for span [%d,%d)", span.Start, span.End)
	}

	text, err := p.summarizer.SummarizeTurns(ctx, entries)
	if err != nil {
		return false, err
	}

	state.Summary.Append(types.SummaryChunk{Level: 0, Span: span, Text: text})
	p.logger.Debug("level-0 chunk appended",
		zap.Int("span_start", span.Start),
		zap.Int("span_end", span.End),
	)
	return true, nil
}

// compact folds any level whose unfolded chunk count exceeds the threshold
// into a single chunk at the next level. Level-0 chunks are retained for
// provenance (marked folded); higher-level inputs are replaced outright.
func (p *Pipeline) compact(ctx context.Context, state *types.MemoryState) (bool, error) {
	if p.summarizer == nil {
		return false, nil
	}

	changed := false
	for level := 0; level <= state.Summary.MaxLevel(); level++ {
		unfolded := unfoldedAt(state.Summary, level)
		if len(unfolded) <= p.cfg.CompactThreshold {
			continue
		}

		text, err := p.summarizer.FoldChunks(ctx, unfolded)
		if err != nil {
			return changed, err
		}

		folded := types.SummaryChunk{
			Level: level + 1,
			Span:  types.TurnSpan{Start: unfolded[0].Span.Start, End: unfolded[len(unfolded)-1].Span.End},
			Text:  text,
		}

		if level == 0 {
			markFolded(&state.Summary, 0)
		} else {
			state.Summary.Levels[level] = nil
		}
		state.Summary.Append(folded)
		changed = true

		p.logger.Debug("level folded",
			zap.Int("level", level),
			zap.Int("chunks", len(unfolded)),
			zap.Int("span_start", folded.Span.Start),
			zap.Int("span_end", folded.Span.End),
		)
	}
	return changed, nil
}

func unfoldedAt(s types.Summary, level int) []types.SummaryChunk {
	var out []types.SummaryChunk
	for _, chunk := range s.ChunksAt(level) {
		if !chunk.Folded {
			out = append(out, chunk)
		}
	}
	return out
}

func markFolded(s *types.Summary, level int) {
	for i := range s.Levels[level] {
		s.Levels[level][i].Folded = true
	}
}

func stageSet(stages []string) map[Stage]bool {
	if len(stages) == 0 {
		return map[Stage]bool{StageFacts: true, StageSummarize: true, StageResummarize: true}
	}
	out := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		out[Stage(s)] = true
	}
	return out
}

func equalFacts(a, b types.Facts) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
