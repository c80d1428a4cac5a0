package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/flowturn/flow"
	"github.com/BaSui01/flowturn/llm"
	"github.com/BaSui01/flowturn/types"
)

// loopResult carries everything the tool-invocation loop produced: the final
// plain assistant text, the last applied transition, and the ordered trace.
type loopResult struct {
	final      string
	transition *flow.Result
	records    []types.ToolCallRecord
	iterations int
}

// runLoop drives the reasoning model until it yields a plain response,
// executing each requested tool call in between. The first call's tool
// choice is pinned to the transition tool; after that the model is free.
// The loop is bounded: exceeding the call budget without a plain response
// is an ENGINE_ERROR fault, never a silent truncation.
func (e *Engine) runLoop(ctx context.Context, execCtx *ExecutionContext, node *flow.Node, messages []types.Message) (*loopResult, error) {
	tools, err := e.toolSet(node)
	if err != nil {
		return nil, types.NewError(types.ErrEngineError, "tool schema assembly failed").WithCause(err)
	}

	traceID := uuid.NewString()
	res := &loopResult{}

	for call := 0; call < e.maxToolCalls; call++ {
		res.iterations = call + 1

		toolChoice := "auto"
		if call == 0 {
			toolChoice = TransitionToolName
		}

		resp, err := e.provider.Completion(ctx, &llm.ChatRequest{
			TraceID:     traceID,
			Model:       e.model,
			Messages:    messages,
			Temperature: execCtx.Model.Temperature,
			TopP:        execCtx.Model.TopP,
			Seed:        execCtx.Model.Seed,
			Tools:       tools,
			ToolChoice:  toolChoice,
		})
		if err != nil {
			e.metrics.RecordLLMRequest(e.model, true, 0, 0)
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, types.NewError(types.ErrTimeout, "reasoning-model call aborted").WithCause(err)
			}
			return nil, types.NewError(types.ErrUpstreamError, "reasoning-model call failed").
				WithCause(err).WithRetryable(true)
		}
		e.metrics.RecordLLMRequest(e.model, false, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		msg := resp.First()
		if len(msg.ToolCalls) == 0 {
			res.final = msg.Content
			return res, nil
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			record, transition, err := e.dispatch(ctx, execCtx, tc)
			if err != nil {
				// Transition faults are turn-fatal.
				res.records = append(res.records, record)
				return nil, err
			}
			if transition != nil {
				res.transition = transition
			}
			res.records = append(res.records, record)
			callID := tc.ID
			if callID == "" {
				// Some providers omit call ids; the tool-result
				// message still needs one to pair up.
				callID = uuid.NewString()
			}
			messages = append(messages, record.ToMessage(callID))
		}
	}

	e.logger.Error("tool loop did not converge",
		zap.String("trace_id", traceID),
		zap.String("node", node.ID),
		zap.Int("max_calls", e.maxToolCalls),
	)
	return nil, types.NewErrorf(types.ErrEngineError,
		"tool loop did not converge within %d model calls", e.maxToolCalls)
}

// dispatch executes one requested tool call and returns its trace record.
// Only transition faults propagate as errors; retrieval failures are folded
// into the record so the model can recover.
func (e *Engine) dispatch(ctx context.Context, execCtx *ExecutionContext, tc types.ToolCall) (types.ToolCallRecord, *flow.Result, error) {
	start := time.Now()
	record := types.ToolCallRecord{Name: tc.Name, Args: tc.Arguments}

	switch tc.Name {
	case TransitionToolName:
		transition, err := e.processor.Apply(execCtx.CurrentNodeID, tc.Arguments)
		record.Latency = time.Since(start)
		if err != nil {
			record.Error = err.Error()
			e.metrics.RecordToolCall(tc.Name, true)
			return record, nil, err
		}
		record.Result = mustJSON(transition.Instructions)
		e.metrics.RecordToolCall(tc.Name, false)
		return record, transition, nil

	case HistoryToolName:
		raw, err := json.Marshal(execCtx.History)
		record.Latency = time.Since(start)
		if err != nil {
			record.Error = err.Error()
			e.metrics.RecordToolCall(tc.Name, true)
			return record, nil, nil
		}
		record.Result = raw
		e.metrics.RecordToolCall(tc.Name, false)
		return record, nil, nil

	default:
		tool, ok := e.retrieval[tc.Name]
		if !ok {
			record.Latency = time.Since(start)
			record.Error = "unknown tool " + tc.Name
			e.metrics.RecordToolCall(tc.Name, true)
			return record, nil, nil
		}
		result, err := tool.Handler(ctx, tc.Arguments)
		record.Latency = time.Since(start)
		if err != nil {
			record.Error = err.Error()
			e.metrics.RecordToolCall(tc.Name, true)
			return record, nil, nil
		}
		record.Result = result
		e.metrics.RecordToolCall(tc.Name, false)
		return record, nil, nil
	}
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return raw
}
