// Package flowturn provides a top-level convenience entry point for building
// a turn engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/flowturn"
//
//	graph, err := flowturn.GraphFromYAMLFile("flow.yaml")
//	eng, err := flowturn.New(graph, provider, flowturn.WithModel("gpt-4o"))
//	result, err := eng.Execute(ctx, flowturn.ExecutionContext{
//	    CurrentNodeID: "start",
//	    UserMessage:   "hi",
//	})
//
// This is a thin wrapper around [engine.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package flowturn

import (
	"fmt"
	"os"

	"github.com/BaSui01/flowturn/engine"
	"github.com/BaSui01/flowturn/flow"
	"github.com/BaSui01/flowturn/llm"
)

// Re-exported engine types so simple callers never import engine/ directly.
type (
	Engine           = engine.Engine
	ExecutionContext = engine.ExecutionContext
	ExecutionResult  = engine.ExecutionResult
	ModelParams      = engine.ModelParams
	RetrievalTool    = engine.RetrievalTool
	Option           = engine.Option
)

// New creates a turn engine over the given graph and provider.
func New(graph *flow.Graph, provider llm.Provider, opts ...Option) (*Engine, error) {
	return engine.New(graph, provider, opts...)
}

// GraphFromYAMLFile loads and validates a flow graph definition.
func GraphFromYAMLFile(path string) (*flow.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow definition: %w", err)
	}
	return flow.FromYAML(data)
}

// Engine option shortcuts.

// WithModel sets the reasoning-model identifier.
var WithModel = engine.WithModel

// WithLogger sets a custom zap logger.
var WithLogger = engine.WithLogger

// WithMaxToolCalls bounds the tool-invocation loop.
var WithMaxToolCalls = engine.WithMaxToolCalls

// WithTokenBudget bounds the prompt's raw history window.
var WithTokenBudget = engine.WithTokenBudget

// WithMemoryPipeline sets the post-turn curation pipeline.
var WithMemoryPipeline = engine.WithMemoryPipeline

// WithRetrievalTool registers an external retrieval tool.
var WithRetrievalTool = engine.WithRetrievalTool

// WithMetrics sets the Prometheus collector.
var WithMetrics = engine.WithMetrics
