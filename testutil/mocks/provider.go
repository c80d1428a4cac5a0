// Package mocks provides mock implementations for flowturn tests.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BaSui01/flowturn/llm"
	"github.com/BaSui01/flowturn/types"
)

// ScriptedProvider is an llm.Provider that replays a fixed queue of
// responses, one per Completion call. It makes the tool-invocation loop
// fully deterministic: script a transition call, optional retrieval calls,
// then a plain response.
type ScriptedProvider struct {
	mu        sync.Mutex
	queue     []*llm.ChatResponse
	loop      bool
	err       error
	requests  []*llm.ChatRequest
	callCount int
}

// NewScriptedProvider creates an empty scripted provider. An exhausted
// queue fails the call unless WithLoop is set.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// WithToolCall enqueues a response asking for one tool call.
func (p *ScriptedProvider) WithToolCall(name string, args any) *ScriptedProvider {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("mocks: marshal %T: %v", args, err))
	}
	return p.WithRawToolCall(name, raw)
}

// WithRawToolCall enqueues a tool-call response with verbatim arguments,
// for scripting malformed payloads.
func (p *ScriptedProvider) WithRawToolCall(name string, args json.RawMessage) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("call_%d", len(p.queue))
	p.queue = append(p.queue, &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			FinishReason: "tool_calls",
			Message: types.Message{
				Role:      types.RoleAssistant,
				ToolCalls: []types.ToolCall{{ID: id, Name: name, Arguments: args}},
			},
		}},
	})
	return p
}

// WithAnonymousToolCall enqueues a tool-call response whose call id is
// empty, the way some providers emit them.
func (p *ScriptedProvider) WithAnonymousToolCall(name string, args any) *ScriptedProvider {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("mocks: marshal %T: %v", args, err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			FinishReason: "tool_calls",
			Message: types.Message{
				Role:      types.RoleAssistant,
				ToolCalls: []types.ToolCall{{Name: name, Arguments: raw}},
			},
		}},
	})
	return p
}

// WithResponse enqueues a plain assistant response.
func (p *ScriptedProvider) WithResponse(content string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      types.NewAssistantMessage(content),
		}},
	})
	return p
}

// WithUsage attaches token usage to the most recently enqueued response.
func (p *ScriptedProvider) WithUsage(prompt, completion int) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) > 0 {
		p.queue[len(p.queue)-1].Usage = llm.ChatUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
	}
	return p
}

// WithLoop makes the queue replay from the start when exhausted. Useful for
// boundedness tests where the model never yields a plain response.
func (p *ScriptedProvider) WithLoop() *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = true
	return p
}

// WithError makes every Completion call fail.
func (p *ScriptedProvider) WithError(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

// Completion pops the next scripted response.
func (p *ScriptedProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}

	idx := p.callCount
	if idx >= len(p.queue) {
		if !p.loop || len(p.queue) == 0 {
			return nil, fmt.Errorf("mocks: scripted queue exhausted after %d calls", p.callCount)
		}
		idx = p.callCount % len(p.queue)
	}
	p.callCount++
	return p.queue[idx], nil
}

// HealthCheck always reports healthy.
func (p *ScriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

// Name returns the mock provider name.
func (p *ScriptedProvider) Name() string { return "scripted" }

// CallCount returns how many Completion calls were made.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

// Requests returns the recorded requests in call order.
func (p *ScriptedProvider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*llm.ChatRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
