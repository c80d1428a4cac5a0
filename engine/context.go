package engine

import (
	"github.com/BaSui01/flowturn/flow"
	"github.com/BaSui01/flowturn/memory"
	"github.com/BaSui01/flowturn/types"
)

// ModelParams parameterize the reasoning-model calls of one turn.
type ModelParams struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	Seed        *int64  `json:"seed,omitempty"`
	// Tracing enables span emission for this call.
	Tracing bool `json:"tracing"`
}

// MemoryPipelineConfig gates the post-turn curation pipeline.
type MemoryPipelineConfig struct {
	Enabled bool `json:"enabled"`
	// Stages restricts curation to a subset of facts, summarize,
	// resummarize. Empty means all stages.
	Stages []string `json:"stages,omitempty"`
}

// ExecutionContext is the complete input of one turn. It is created fresh
// per call and never retained by the engine; all conversation state travels
// inside it.
type ExecutionContext struct {
	CurrentNodeID  string               `json:"current_node_id"`
	UserMessage    string               `json:"latest_user_message"`
	History        types.History        `json:"history"`
	Memory         types.MemoryState    `json:"memory"`
	DryRun         bool                 `json:"dry_run"`
	MemoryPipeline MemoryPipelineConfig `json:"memory_pipeline"`
	Model          ModelParams          `json:"model_params"`
}

// ExecutionResult is the complete output of one turn. History and memory are
// updated snapshots; the caller threads them into the next call.
type ExecutionResult struct {
	CurrentNodeID      string                 `json:"current_node_id"`
	History            types.History          `json:"history"`
	Memory             types.MemoryState      `json:"memory"`
	FlowCompleted      bool                   `json:"flow_completed"`
	NextNodeDescriptor *flow.Descriptor       `json:"next_node_descriptor,omitempty"`
	ToolCalls          []types.ToolCallRecord `json:"tool_calls,omitempty"`
	// FinalResponse is the turn's plain assistant output.
	FinalResponse string `json:"final_response"`
	// MemoryOutcomes reports per-stage curation results, including the
	// fault-isolated failures that did not abort the turn.
	MemoryOutcomes []memory.Outcome `json:"-"`
}
