package types

import (
	"encoding/json"
	"time"
)

// ToolSchema defines a tool's interface for model function calling.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCallRecord is one entry of a turn's tool-call trace: what the model
// asked for, what the handler returned, and how long it took.
type ToolCallRecord struct {
	Name    string          `json:"name"`
	Args    json.RawMessage `json:"args"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Latency time.Duration   `json:"latency"`
}

// ToMessage converts a ToolCallRecord into the tool-result message appended
// to the in-flight message sequence.
func (r ToolCallRecord) ToMessage(toolCallID string) Message {
	content := string(r.Result)
	if r.Error != "" {
		content = "Error: " + r.Error
	}
	return Message{
		Role:       RoleTool,
		Content:    content,
		Name:       r.Name,
		ToolCallID: toolCallID,
	}
}
