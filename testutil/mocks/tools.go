package mocks

import (
	"context"
	"encoding/json"
	"sync"
)

// RetrievalHandler is a scripted retrieval-tool handler that records its
// invocations.
type RetrievalHandler struct {
	mu     sync.Mutex
	result json.RawMessage
	err    error
	calls  []json.RawMessage
}

// NewRetrievalHandler creates a handler returning the given JSON result.
func NewRetrievalHandler(result string) *RetrievalHandler {
	return &RetrievalHandler{result: json.RawMessage(result)}
}

// WithError makes the handler fail.
func (h *RetrievalHandler) WithError(err error) *RetrievalHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	return h
}

// Handle implements the retrieval tool handler signature.
func (h *RetrievalHandler) Handle(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, args)
	if h.err != nil {
		return nil, h.err
	}
	return h.result, nil
}

// Calls returns the recorded argument payloads.
func (h *RetrievalHandler) Calls() []json.RawMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]json.RawMessage, len(h.calls))
	copy(out, h.calls)
	return out
}
