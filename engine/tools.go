package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/flowturn/flow"
	"github.com/BaSui01/flowturn/types"
)

const (
	// TransitionToolName is the pinned first tool of every turn.
	TransitionToolName = "flow_transition"
	// HistoryToolName retrieves the complete raw history, independent of
	// any summarization.
	HistoryToolName = "fetch_full_history"
)

// RetrievalTool is an externally supplied tool the loop can dispatch to. The
// engine only needs the name, the argument schema, and the handler; it does
// not own the implementation.
type RetrievalTool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Handler     func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// transitionSchema builds the transition-tool schema for the given node. The
// argument shape is polymorphic on node type: start nodes pick a next node
// id, conversation nodes pick one of the declared option ids (or -1 to
// remain in the node).
func transitionSchema(node *flow.Node) (types.ToolSchema, error) {
	var params map[string]any

	switch node.Type {
	case flow.NodeStart:
		params = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"current_node_id": map[string]any{
					"type":        "string",
					"const":       node.ID,
					"description": "The node currently being executed.",
				},
				"next_node_id": map[string]any{
					"type":        "string",
					"description": "The id of the node to transition to.",
				},
			},
			"required":             []string{"current_node_id", "next_node_id"},
			"additionalProperties": false,
		}

	case flow.NodeConversation:
		ids := make([]int, 0, len(node.Options)+1)
		ids = append(ids, flow.RemainOption)
		for _, opt := range node.Options {
			ids = append(ids, opt.ID)
		}
		params = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"current_node_id": map[string]any{
					"type":        "string",
					"const":       node.ID,
					"description": "The node currently being executed.",
				},
				"option_id": map[string]any{
					"type":        "integer",
					"enum":        ids,
					"description": "The id of the chosen option, or -1 to remain in the current node.",
				},
			},
			"required":             []string{"current_node_id", "option_id"},
			"additionalProperties": false,
		}

	default:
		return types.ToolSchema{}, fmt.Errorf("no transition schema for node type %q", node.Type)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return types.ToolSchema{}, fmt.Errorf("marshal transition schema: %w", err)
	}
	return types.ToolSchema{
		Name:        TransitionToolName,
		Description: "Advance or hold the conversation flow. Must be called first on every turn.",
		Parameters:  raw,
	}, nil
}

func historySchema() types.ToolSchema {
	return types.ToolSchema{
		Name:        HistoryToolName,
		Description: "Fetch the complete raw conversation history, beyond the window in the prompt.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
	}
}

// toolSet assembles the schemas offered to the model for one turn.
func (e *Engine) toolSet(node *flow.Node) ([]types.ToolSchema, error) {
	schema, err := transitionSchema(node)
	if err != nil {
		return nil, err
	}
	tools := []types.ToolSchema{schema, historySchema()}
	for _, rt := range e.retrievalOrder {
		tool := e.retrieval[rt]
		tools = append(tools, types.ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return tools, nil
}
