package types

// FactRecord is one curated fact extracted from raw history.
type FactRecord struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	SourceTurn int     `json:"source_turn_index"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Facts maps fact keys to their current records. Keys are unique; a repeated
// extraction for an existing key is a correction, never a duplicate.
type Facts map[string]FactRecord

// Clone returns a deep copy of the fact map.
func (f Facts) Clone() Facts {
	if f == nil {
		return nil
	}
	out := make(Facts, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// TurnSpan is a half-open range of turn indices [Start, End).
type TurnSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of turns the span covers.
func (s TurnSpan) Len() int { return s.End - s.Start }

// SummaryChunk is one compacted slice of conversation at a given level.
// Level 0 chunks are derived directly from raw history; level L chunks fold
// level L-1 chunks. Folded marks chunks that a higher-level chunk has
// absorbed; they stay for provenance but leave the active view.
type SummaryChunk struct {
	Level  int      `json:"level"`
	Span   TurnSpan `json:"turn_span"`
	Text   string   `json:"text"`
	Folded bool     `json:"folded,omitempty"`
}

// Summary holds the ordered chunk sequences per level. Invariant: for each
// level, chunk spans are disjoint and monotonically increasing, and the union
// of level-0 spans plus the unsummarized tail equals the full history prefix.
type Summary struct {
	Levels [][]SummaryChunk `json:"levels,omitempty"`
}

// MaxLevel returns the highest level that holds at least one chunk, or -1
// for an empty summary.
func (s Summary) MaxLevel() int {
	return len(s.Levels) - 1
}

// ChunksAt returns the chunk sequence at the given level.
func (s Summary) ChunksAt(level int) []SummaryChunk {
	if level < 0 || level >= len(s.Levels) {
		return nil
	}
	return s.Levels[level]
}

// IsEmpty reports whether no chunk exists at any level.
func (s Summary) IsEmpty() bool {
	for _, lvl := range s.Levels {
		if len(lvl) > 0 {
			return false
		}
	}
	return true
}

// CoveredThrough returns the end of the last level-0 span, i.e. the first
// turn index not yet summarized. Zero when no level-0 chunk exists.
func (s Summary) CoveredThrough() int {
	l0 := s.ChunksAt(0)
	if len(l0) == 0 {
		return 0
	}
	return l0[len(l0)-1].Span.End
}

// Append adds a chunk to its level, growing the level slices as needed.
func (s *Summary) Append(chunk SummaryChunk) {
	for len(s.Levels) <= chunk.Level {
		s.Levels = append(s.Levels, nil)
	}
	s.Levels[chunk.Level] = append(s.Levels[chunk.Level], chunk)
}

// Clone returns a deep copy of the summary.
func (s Summary) Clone() Summary {
	if s.Levels == nil {
		return Summary{}
	}
	out := Summary{Levels: make([][]SummaryChunk, len(s.Levels))}
	for i, lvl := range s.Levels {
		if lvl == nil {
			continue
		}
		out.Levels[i] = make([]SummaryChunk, len(lvl))
		copy(out.Levels[i], lvl)
	}
	return out
}

// MemoryState is the bounded, tiered memory threaded turn-to-turn by the
// caller. It is passed by value into and out of the engine; the engine never
// retains a shared mutable instance across calls.
type MemoryState struct {
	TurnIndex int     `json:"turn_index"`
	Facts     Facts   `json:"facts,omitempty"`
	Summary   Summary `json:"summary,omitempty"`
}

// Clone returns a deep copy of the memory state.
func (m MemoryState) Clone() MemoryState {
	return MemoryState{
		TurnIndex: m.TurnIndex,
		Facts:     m.Facts.Clone(),
		Summary:   m.Summary.Clone(),
	}
}
