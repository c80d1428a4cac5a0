package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/flowturn/types"
)

// Active returns the summary chunks surfaced to the prompt assembler: the
// highest available level for older spans and lower levels for recent spans.
// Folded chunks stay out; their content lives on in the chunk that absorbed
// them. Spans of the returned chunks are disjoint and sorted.
func Active(s types.Summary) []types.SummaryChunk {
	var out []types.SummaryChunk
	for level := 0; level <= s.MaxLevel(); level++ {
		for _, chunk := range s.ChunksAt(level) {
			if !chunk.Folded {
				out = append(out, chunk)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}

// FormatActive renders the active view as the summary message body.
func FormatActive(s types.Summary) string {
	chunks := Active(s)
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "[turns %d-%d] %s\n", chunk.Span.Start, chunk.Span.End, chunk.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// CoverageGap reports the first uncovered turn range in [0, turnIndex)
// considering level-0 spans plus the unsummarized tail, or false when the
// coverage invariant holds.
func CoverageGap(s types.Summary, turnIndex int) (types.TurnSpan, bool) {
	next := 0
	for _, chunk := range s.ChunksAt(0) {
		if chunk.Span.Start != next {
			return types.TurnSpan{Start: next, End: chunk.Span.Start}, true
		}
		next = chunk.Span.End
	}
	if next > turnIndex {
		return types.TurnSpan{Start: turnIndex, End: next}, true
	}
	// [next, turnIndex) is the unsummarized tail.
	return types.TurnSpan{}, false
}
