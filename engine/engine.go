// Package engine implements the stateless conversational turn cycle: prompt
// assembly, the bounded tool-invocation loop, node transitions, result
// building, and post-turn memory curation. All mutable state travels in
// ExecutionContext and ExecutionResult; nothing persists between calls, so
// unrelated conversations execute in parallel without coordination.
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/flowturn/flow"
	"github.com/BaSui01/flowturn/internal/metrics"
	"github.com/BaSui01/flowturn/llm"
	"github.com/BaSui01/flowturn/memory"
	"github.com/BaSui01/flowturn/tokenizer"
	"github.com/BaSui01/flowturn/types"
)

const (
	// DefaultMaxToolCalls bounds the tool-invocation loop.
	DefaultMaxToolCalls = 8
	// DefaultTokenBudget bounds the raw history window in the prompt.
	DefaultTokenBudget = 4096
)

// Engine executes single conversation turns against a flow graph. It is
// safe for concurrent use; every call is self-contained.
type Engine struct {
	graph     *flow.Graph
	provider  llm.Provider
	processor *flow.Processor
	assembler *Assembler
	pipeline  *memory.Pipeline

	retrieval      map[string]RetrievalTool
	retrievalOrder []string

	model        string
	maxToolCalls int
	tokenBudget  int

	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithModel sets the reasoning-model identifier used for all calls.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithMaxToolCalls bounds the tool-invocation loop.
func WithMaxToolCalls(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.maxToolCalls = k
		}
	}
}

// WithTokenBudget bounds the raw history window in the prompt.
func WithTokenBudget(budget int) Option {
	return func(e *Engine) {
		if budget > 0 {
			e.tokenBudget = budget
		}
	}
}

// WithMemoryPipeline sets the post-turn curation pipeline. Without one, the
// memory_pipeline.enabled flag is a no-op beyond the turn counter.
func WithMemoryPipeline(p *memory.Pipeline) Option {
	return func(e *Engine) { e.pipeline = p }
}

// WithRetrievalTool registers an external retrieval tool. Registration order
// is preserved in the schema set.
func WithRetrievalTool(tool RetrievalTool) Option {
	return func(e *Engine) {
		if tool.Name == "" || tool.Handler == nil {
			return
		}
		if _, exists := e.retrieval[tool.Name]; !exists {
			e.retrievalOrder = append(e.retrievalOrder, tool.Name)
		}
		e.retrieval[tool.Name] = tool
	}
}

// WithMetrics sets the Prometheus collector. Nil disables instrumentation.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// New creates an engine over the given graph and provider.
func New(graph *flow.Graph, provider llm.Provider, opts ...Option) (*Engine, error) {
	if graph == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "engine requires a flow graph")
	}
	if provider == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "engine requires a provider")
	}

	e := &Engine{
		graph:        graph,
		provider:     provider,
		retrieval:    make(map[string]RetrievalTool),
		model:        "gpt-4o",
		maxToolCalls: DefaultMaxToolCalls,
		tokenBudget:  DefaultTokenBudget,
		tracer:       otel.Tracer("flowturn/engine"),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With(zap.String("component", "engine"))
	e.processor = flow.NewProcessor(graph, e.logger)
	e.assembler = NewAssembler(tokenizer.ForModel(e.model), e.tokenBudget)
	return e, nil
}

// Execute runs one complete turn. A turn either completes and returns a full
// result, or fails as a unit with no partial state mutation; the input
// context is never modified either way.
func (e *Engine) Execute(ctx context.Context, execCtx ExecutionContext) (*ExecutionResult, error) {
	start := time.Now()

	if execCtx.Model.Tracing {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "engine.execute", trace.WithAttributes(
			attribute.String("node.id", execCtx.CurrentNodeID),
			attribute.Bool("dry_run", execCtx.DryRun),
		))
		defer span.End()
		defer func() {
			span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
		}()
	}

	result, err := e.execute(ctx, &execCtx)
	status := "ok"
	if err != nil {
		status = string(types.GetErrorCode(err))
		e.logger.Error("turn failed",
			zap.String("node", execCtx.CurrentNodeID),
			zap.Error(err),
		)
		if execCtx.Model.Tracing {
			trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())
		}
	}
	e.metrics.RecordTurn(time.Since(start), status, execCtx.DryRun)
	return result, err
}

// ExecuteTest runs one turn with deterministic model parameters: temperature
// 0, top_p 1, and the given seed. Identical contract to Execute.
func (e *Engine) ExecuteTest(ctx context.Context, execCtx ExecutionContext, seed *int64, enableTracing bool) (*ExecutionResult, error) {
	execCtx.Model = ModelParams{Temperature: 0, TopP: 1, Seed: seed, Tracing: enableTracing}
	return e.Execute(ctx, execCtx)
}

func (e *Engine) execute(ctx context.Context, execCtx *ExecutionContext) (*ExecutionResult, error) {
	node, err := e.validate(execCtx)
	if err != nil {
		return nil, err
	}

	messages := e.assembler.Assemble(node, execCtx.Memory, execCtx.History, execCtx.UserMessage)

	loop, err := e.runLoop(ctx, execCtx, node, messages)
	if err != nil {
		e.metrics.RecordLoop(e.maxToolCalls, string(types.GetErrorCode(err)))
		return nil, err
	}
	e.metrics.RecordLoop(loop.iterations, "ok")
	if loop.transition != nil {
		e.metrics.RecordTransition(string(node.Type), loop.transition.Completed)
	}

	return e.buildResult(ctx, execCtx, loop), nil
}

// validate resolves the starting node. Resolving to a stop node is a
// validation fault, not a silent no-op.
func (e *Engine) validate(execCtx *ExecutionContext) (*flow.Node, error) {
	if execCtx.UserMessage == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "latest_user_message must not be empty")
	}
	node, ok := e.graph.Node(execCtx.CurrentNodeID)
	if !ok {
		return nil, types.NewErrorf(types.ErrNodeMismatch, "unknown current node %q", execCtx.CurrentNodeID)
	}
	if node.Type == flow.NodeStop {
		return nil, types.NewErrorf(types.ErrNodeMismatch,
			"node %q is a stop node and cannot start a turn", node.ID)
	}
	return node, nil
}

// buildResult assembles the turn's output snapshot: appended history, the
// resolved node, the completion flag, and the curated (or untouched, under
// dry_run) memory state.
func (e *Engine) buildResult(ctx context.Context, execCtx *ExecutionContext, loop *loopResult) *ExecutionResult {
	turn := execCtx.Memory.TurnIndex
	history := execCtx.History.Clone()
	history = append(history,
		types.HistoryEntry{Role: types.RoleUser, Content: execCtx.UserMessage, TurnIndex: turn},
		types.HistoryEntry{Role: types.RoleAssistant, Content: loop.final, TurnIndex: turn, Trace: loop.records},
	)

	result := &ExecutionResult{
		CurrentNodeID: execCtx.CurrentNodeID,
		History:       history,
		ToolCalls:     loop.records,
		FinalResponse: loop.final,
	}
	if loop.transition != nil {
		result.CurrentNodeID = loop.transition.NextNodeID
		result.FlowCompleted = loop.transition.Completed
		result.NextNodeDescriptor = loop.transition.Descriptor
	}

	if execCtx.DryRun {
		// Bit-identical memory, untouched turn counter.
		result.Memory = execCtx.Memory
		return result
	}

	mem := execCtx.Memory.Clone()
	mem.TurnIndex = turn + 1

	if execCtx.MemoryPipeline.Enabled && e.pipeline != nil {
		var outcomes []memory.Outcome
		mem, outcomes = e.pipeline.Curate(ctx, mem, history, execCtx.MemoryPipeline.Stages)
		result.MemoryOutcomes = outcomes
		for _, out := range outcomes {
			e.metrics.RecordMemoryStage(string(out.Stage), out.Changed, out.Err != nil)
		}
	}

	result.Memory = mem
	return result
}
