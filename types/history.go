package types

// HistoryEntry is one message of the canonical, unsummarized conversation
// record. Entries are never mutated or reordered after insertion.
type HistoryEntry struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	TurnIndex int              `json:"turn_index"`
	Trace     []ToolCallRecord `json:"trace,omitempty"`
}

// History is the append-only ordered sequence of conversation entries.
type History []HistoryEntry

// Clone returns a shallow copy of the history slice. Entries themselves are
// value types and safe to share.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Tail returns the last n entries (all of them when n exceeds the length).
func (h History) Tail(n int) History {
	if n <= 0 {
		return nil
	}
	if n >= len(h) {
		return h
	}
	return h[len(h)-n:]
}

// SinceTurn returns the entries whose turn index is >= start.
func (h History) SinceTurn(start int) History {
	for i, e := range h {
		if e.TurnIndex >= start {
			return h[i:]
		}
	}
	return nil
}
