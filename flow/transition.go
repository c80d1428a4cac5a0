package flow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/flowturn/types"
)

// StartArgs is the transition-tool argument shape for start nodes.
type StartArgs struct {
	CurrentNodeID string `json:"current_node_id"`
	NextNodeID    string `json:"next_node_id"`
}

// ConversationArgs is the transition-tool argument shape for conversation
// nodes. OptionID -1 is the reserved "remain in node" sentinel.
type ConversationArgs struct {
	CurrentNodeID string `json:"current_node_id"`
	OptionID      *int   `json:"option_id"`
}

// Result is the outcome of one applied transition.
type Result struct {
	// NextNodeID is the resolved target node. Empty only on the degenerate
	// remain case where the current node is kept; callers should prefer the
	// explicit fields below.
	NextNodeID string
	// Completed is true when the target is a stop node: the turn's result
	// must report a nil next node and flow_completed = true.
	Completed bool
	// Descriptor describes the target node for the caller.
	Descriptor *Descriptor
	// Instructions tell the model how to continue after the transition.
	Instructions string
}

// Processor validates and applies transition-tool payloads against the
// graph. It is a pure state machine over node types; validation faults are
// turn-fatal and never silently swallowed.
type Processor struct {
	graph  *Graph
	logger *zap.Logger
}

// NewProcessor creates a transition processor over the given graph.
func NewProcessor(graph *Graph, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		graph:  graph,
		logger: logger.With(zap.String("component", "transition")),
	}
}

// Apply validates the raw transition arguments against the current node and
// returns the transition result. The argument shape is polymorphic on node
// type: start nodes require {current_node_id, next_node_id}, conversation
// nodes require {current_node_id, option_id}.
func (p *Processor) Apply(currentNodeID string, args json.RawMessage) (*Result, error) {
	node, ok := p.graph.Node(currentNodeID)
	if !ok {
		return nil, types.NewErrorf(types.ErrNodeMismatch, "unknown current node %q", currentNodeID)
	}

	switch node.Type {
	case NodeStart:
		return p.applyStart(node, args)
	case NodeConversation:
		return p.applyConversation(node, args)
	case NodeStop:
		return nil, types.NewErrorf(types.ErrNodeMismatch, "node %q is a stop node and cannot be executed", node.ID)
	default:
		return nil, types.NewErrorf(types.ErrEngineError, "node %q has unhandled type %q", node.ID, node.Type)
	}
}

func (p *Processor) applyStart(node *Node, raw json.RawMessage) (*Result, error) {
	var args StartArgs
	if err := strictUnmarshal(raw, &args); err != nil {
		return nil, types.NewErrorf(types.ErrToolArgsMismatch, "start transition arguments: %v", err)
	}
	if args.CurrentNodeID != node.ID {
		return nil, types.NewErrorf(types.ErrToolArgsMismatch,
			"transition names current node %q but execution is at %q", args.CurrentNodeID, node.ID)
	}
	if args.NextNodeID == "" {
		return nil, types.NewError(types.ErrToolArgsMismatch, "start transition requires next_node_id")
	}

	next, ok := p.graph.Node(args.NextNodeID)
	if !ok {
		return nil, types.NewErrorf(types.ErrNodeMismatch, "start transition targets unknown node %q", args.NextNodeID)
	}

	p.logger.Debug("start transition applied",
		zap.String("from", node.ID),
		zap.String("to", next.ID),
	)
	return p.resultFor(next), nil
}

func (p *Processor) applyConversation(node *Node, raw json.RawMessage) (*Result, error) {
	var args ConversationArgs
	if err := strictUnmarshal(raw, &args); err != nil {
		return nil, types.NewErrorf(types.ErrToolArgsMismatch, "conversation transition arguments: %v", err)
	}
	if args.CurrentNodeID != node.ID {
		return nil, types.NewErrorf(types.ErrToolArgsMismatch,
			"transition names current node %q but execution is at %q", args.CurrentNodeID, node.ID)
	}
	if args.OptionID == nil {
		return nil, types.NewError(types.ErrToolArgsMismatch, "conversation transition requires option_id")
	}

	optionID := *args.OptionID
	if optionID == RemainOption {
		p.logger.Debug("remaining in node", zap.String("node", node.ID))
		return &Result{
			NextNodeID: node.ID,
			Descriptor: node.Describe(),
			Instructions: fmt.Sprintf("Remain in node %q and continue the conversation. Node guidance: %s",
				node.ID, node.Prompt),
		}, nil
	}

	opt, ok := node.Option(optionID)
	if !ok {
		return nil, types.NewErrorf(types.ErrToolArgsMismatch,
			"node %q declares no option %d", node.ID, optionID)
	}

	next, ok := p.graph.Node(opt.Next)
	if !ok {
		// validate() rejects dangling targets; reaching this means the graph
		// was mutated after construction.
		return nil, types.NewErrorf(types.ErrEngineError, "option %d of node %q targets unknown node %q",
			optionID, node.ID, opt.Next)
	}

	p.logger.Debug("conversation transition applied",
		zap.String("from", node.ID),
		zap.String("to", next.ID),
		zap.Int("option", optionID),
	)
	return p.resultFor(next), nil
}

func (p *Processor) resultFor(next *Node) *Result {
	if next.Type == NodeStop {
		return &Result{
			NextNodeID:   next.ID,
			Completed:    true,
			Descriptor:   next.Describe(),
			Instructions: "The conversation flow is complete. Provide a closing response to the user.",
		}
	}
	return &Result{
		NextNodeID: next.ID,
		Descriptor: next.Describe(),
		Instructions: fmt.Sprintf("Proceed to node %q. Node guidance: %s",
			next.ID, next.Prompt),
	}
}

// strictUnmarshal decodes JSON rejecting unknown fields, so a payload shaped
// for the wrong node type fails loudly instead of half-parsing.
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty arguments")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
