package evalspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowturn/engine"
	"github.com/BaSui01/flowturn/types"
)

const validDoc = `{
	"version": "1",
	"suite_id": "pricing_flow",
	"defaults": {"start_node_id": "start", "seed": 7},
	"tests": [
		{
			"id": "happy_path",
			"turns": [
				{
					"turn_id": "t1",
					"user_input": "hi",
					"expected": {
						"next_node_id": "conv_1",
						"tool_call": {"name": "flow_transition", "args": {"next_node_id": "conv_1"}}
					}
				},
				{
					"turn_id": "t2",
					"user_input": "I'm Ada, I want pricing",
					"expected": {
						"facts_add": {"user_name": "Ada"}
					}
				}
			],
			"final_assertions": {"flow_completed": false, "current_node_id": "conv_2"}
		}
	]
}`

func TestParse_Valid(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, "pricing_flow", doc.SuiteID)
	require.Len(t, doc.Tests, 1)
	assert.Len(t, doc.Tests[0].Turns, 2)
	assert.Equal(t, "start", doc.StartNode(&doc.Tests[0]))
	require.NotNil(t, doc.Defaults.Seed)
	assert.Equal(t, int64(7), *doc.Defaults.Seed)
}

func TestParse_StartNodeOverride(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	test := doc.Tests[0]
	test.StartNodeID = "conv_1"
	assert.Equal(t, "conv_1", doc.StartNode(&test))
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
	}{
		{"bad version", `{"version":"2","suite_id":"s","tests":[{"id":"a","turns":[{"turn_id":"t","user_input":"x"}]}]}`},
		{"missing suite id", `{"version":"1","tests":[{"id":"a","turns":[{"turn_id":"t","user_input":"x"}]}]}`},
		{"no tests", `{"version":"1","suite_id":"s","tests":[]}`},
		{"duplicate test id", `{"version":"1","suite_id":"s","tests":[
			{"id":"a","turns":[{"turn_id":"t","user_input":"x"}]},
			{"id":"a","turns":[{"turn_id":"t","user_input":"x"}]}]}`},
		{"no turns", `{"version":"1","suite_id":"s","tests":[{"id":"a","turns":[]}]}`},
		{"duplicate turn id", `{"version":"1","suite_id":"s","tests":[{"id":"a","turns":[
			{"turn_id":"t","user_input":"x"},{"turn_id":"t","user_input":"y"}]}]}`},
		{"empty user input", `{"version":"1","suite_id":"s","tests":[{"id":"a","turns":[{"turn_id":"t","user_input":""}]}]}`},
		{"not json", `{{`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func passingResult() *engine.ExecutionResult {
	return &engine.ExecutionResult{
		CurrentNodeID: "conv_1",
		FlowCompleted: false,
		ToolCalls: []types.ToolCallRecord{{
			Name: "flow_transition",
			Args: []byte(`{"current_node_id":"start","next_node_id":"conv_1"}`),
		}},
		Memory: types.MemoryState{
			TurnIndex: 1,
			Facts: types.Facts{
				"user_name": {Key: "user_name", Value: "Ada", SourceTurn: 0},
			},
		},
	}
}

func TestCheckTurn_AllPass(t *testing.T) {
	t.Parallel()
	turn := &Turn{
		TurnID:    "t1",
		UserInput: "hi",
		Expected: Expected{
			NextNodeID:    strPtr("conv_1"),
			FlowCompleted: boolPtr(false),
			ToolCall:      &ExpectedToolCall{Name: "flow_transition", Args: map[string]any{"next_node_id": "conv_1"}},
			FactsAdd:      map[string]string{"user_name": "Ada"},
		},
	}
	assert.Empty(t, CheckTurn(turn, passingResult()))
}

func TestCheckTurn_Violations(t *testing.T) {
	t.Parallel()
	turn := &Turn{
		TurnID: "t1",
		Expected: Expected{
			NextNodeID:    strPtr("conv_2"),
			FlowCompleted: boolPtr(true),
			ToolCall:      &ExpectedToolCall{Name: "flow_transition", Args: map[string]any{"next_node_id": "conv_2"}},
			FactsAdd:      map[string]string{"user_name": "Grace", "plan": "pro"},
		},
	}
	violations := CheckTurn(turn, passingResult())
	require.Len(t, violations, 5)

	codes := make(map[string]int)
	for _, v := range violations {
		codes[v.Code]++
		assert.Equal(t, "t1", v.TurnID)
	}
	assert.Equal(t, 2, codes[CodeNodeMismatch])
	assert.Equal(t, 1, codes[CodeToolArgsMismatch])
	assert.Equal(t, 2, codes[CodeFactDrift])
}

func TestCheckTurn_ToolCallNameOnly(t *testing.T) {
	t.Parallel()
	turn := &Turn{
		TurnID:   "t1",
		Expected: Expected{ToolCall: &ExpectedToolCall{Name: "flow_transition"}},
	}
	assert.Empty(t, CheckTurn(turn, passingResult()))

	turn.Expected.ToolCall.Name = "kb_search"
	violations := CheckTurn(turn, passingResult())
	require.Len(t, violations, 1)
	assert.Equal(t, CodeToolArgsMismatch, violations[0].Code)
}

func TestCheckTurn_NumericArgsMatch(t *testing.T) {
	t.Parallel()
	result := &engine.ExecutionResult{
		CurrentNodeID: "conv_1",
		ToolCalls: []types.ToolCallRecord{{
			Name: "flow_transition",
			Args: []byte(`{"current_node_id":"conv_1","option_id":-1}`),
		}},
	}
	turn := &Turn{
		TurnID: "t1",
		Expected: Expected{
			ToolCall: &ExpectedToolCall{Name: "flow_transition", Args: map[string]any{"option_id": -1}},
		},
	}
	assert.Empty(t, CheckTurn(turn, result))
}

func TestCheckFinal(t *testing.T) {
	t.Parallel()
	result := passingResult()

	assert.Empty(t, CheckFinal(nil, result))
	assert.Empty(t, CheckFinal(&FinalAssertions{
		CurrentNodeID: strPtr("conv_1"),
		FlowCompleted: boolPtr(false),
		Facts:         map[string]string{"user_name": "Ada"},
	}, result))

	violations := CheckFinal(&FinalAssertions{
		CurrentNodeID: strPtr("end"),
		FlowCompleted: boolPtr(true),
		Facts:         map[string]string{"user_name": "Grace"},
	}, result)
	assert.Len(t, violations, 3)
}
