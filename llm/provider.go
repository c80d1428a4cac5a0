// Package llm defines the abstract reasoning-model boundary. The engine only
// ever talks to a Provider; concrete adapters live outside this module and
// are substituted by scripted stubs in tests.
package llm

import (
	"context"
	"time"

	"github.com/BaSui01/flowturn/types"
)

// ChatRequest is one synchronous chat completion request.
type ChatRequest struct {
	TraceID     string             `json:"trace_id,omitempty"`
	Model       string             `json:"model"`
	Messages    []types.Message    `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float32            `json:"temperature"`
	TopP        float32            `json:"top_p,omitempty"`
	Seed        *int64             `json:"seed,omitempty"`
	Stop        []string           `json:"stop,omitempty"`
	Tools       []types.ToolSchema `json:"tools,omitempty"`
	// ToolChoice pins the model's next action: "auto", "none", or the name
	// of a specific tool the model must call.
	ToolChoice string            `json:"tool_choice,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ChatUsage reports token accounting for one completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatChoice is one candidate completion.
type ChatChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Message      types.Message `json:"message"`
}

// ChatResponse is the full response of a chat completion request.
type ChatResponse struct {
	ID       string       `json:"id,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Model    string       `json:"model"`
	Choices  []ChatChoice `json:"choices"`
	Usage    ChatUsage    `json:"usage,omitempty"`
}

// First returns the first choice's message, or a zero message when the
// response carries no choices.
func (r *ChatResponse) First() types.Message {
	if r == nil || len(r.Choices) == 0 {
		return types.Message{}
	}
	return r.Choices[0].Message
}

// HealthStatus reports a provider health probe result.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	ErrorRate float64       `json:"error_rate"`
}

// Provider is the unified reasoning-model interface. Calls are blocking;
// timeout and retry policy belong to the caller, not to implementations.
type Provider interface {
	// Completion issues a synchronous chat request and returns the full
	// response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck performs a lightweight liveness probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}
