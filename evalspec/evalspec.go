// Package evalspec defines the versioned JSON test-specification format the
// evaluation orchestrator feeds to the engine, and the per-turn assertion
// checks over a single execution result.
package evalspec

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/flowturn/engine"
)

// Version is the supported document version.
const Version = "1"

// Document is a versioned suite of conversational flow tests.
type Document struct {
	Version  string   `json:"version"`
	SuiteID  string   `json:"suite_id"`
	Defaults Defaults `json:"defaults,omitempty"`
	Tests    []Test   `json:"tests"`
}

// Defaults apply to every test unless the test overrides them.
type Defaults struct {
	StartNodeID string `json:"start_node_id,omitempty"`
	Model       string `json:"model,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
}

// Test is one scripted conversation.
type Test struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	StartNodeID string `json:"start_node_id,omitempty"`
	Turns       []Turn `json:"turns"`
	// FinalAssertions are checked once, against the last turn's result.
	FinalAssertions *FinalAssertions `json:"final_assertions,omitempty"`
}

// Turn is one scripted user message plus its expected outcome.
type Turn struct {
	TurnID    string   `json:"turn_id"`
	UserInput string   `json:"user_input"`
	Expected  Expected `json:"expected,omitempty"`
}

// Expected holds the per-turn assertions. Every field is optional; absent
// fields assert nothing.
type Expected struct {
	NextNodeID    *string           `json:"next_node_id,omitempty"`
	ToolCall      *ExpectedToolCall `json:"tool_call,omitempty"`
	FactsAdd      map[string]string `json:"facts_add,omitempty"`
	FactsUpdate   map[string]string `json:"facts_update,omitempty"`
	FlowCompleted *bool             `json:"flow_completed,omitempty"`
}

// ExpectedToolCall asserts that a named tool was invoked during the turn,
// optionally with specific argument values. Listed argument keys must match
// exactly; unlisted keys are ignored.
type ExpectedToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FinalAssertions are suite-level checks over the conversation's final state.
type FinalAssertions struct {
	CurrentNodeID *string           `json:"current_node_id,omitempty"`
	FlowCompleted *bool             `json:"flow_completed,omitempty"`
	Facts         map[string]string `json:"facts,omitempty"`
}

// Parse decodes and validates a test document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("evalspec: decode document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document's structural invariants.
func (d *Document) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("evalspec: unsupported version %q (want %q)", d.Version, Version)
	}
	if d.SuiteID == "" {
		return fmt.Errorf("evalspec: suite_id is required")
	}
	if len(d.Tests) == 0 {
		return fmt.Errorf("evalspec: document declares no tests")
	}

	testIDs := make(map[string]struct{}, len(d.Tests))
	for i, test := range d.Tests {
		if test.ID == "" {
			return fmt.Errorf("evalspec: test %d has no id", i)
		}
		if _, dup := testIDs[test.ID]; dup {
			return fmt.Errorf("evalspec: duplicate test id %q", test.ID)
		}
		testIDs[test.ID] = struct{}{}

		if len(test.Turns) == 0 {
			return fmt.Errorf("evalspec: test %q declares no turns", test.ID)
		}
		turnIDs := make(map[string]struct{}, len(test.Turns))
		for j, turn := range test.Turns {
			if turn.TurnID == "" {
				return fmt.Errorf("evalspec: test %q turn %d has no turn_id", test.ID, j)
			}
			if _, dup := turnIDs[turn.TurnID]; dup {
				return fmt.Errorf("evalspec: test %q has duplicate turn_id %q", test.ID, turn.TurnID)
			}
			turnIDs[turn.TurnID] = struct{}{}
			if turn.UserInput == "" {
				return fmt.Errorf("evalspec: test %q turn %q has empty user_input", test.ID, turn.TurnID)
			}
		}
	}
	return nil
}

// StartNode resolves a test's starting node against the defaults.
func (d *Document) StartNode(test *Test) string {
	if test.StartNodeID != "" {
		return test.StartNodeID
	}
	return d.Defaults.StartNodeID
}

// Violation classification codes. Node and tool mismatches mirror the
// engine's own fault codes; fact drift exists only on the evaluator side.
const (
	CodeNodeMismatch     = "NODE_MISMATCH"
	CodeToolArgsMismatch = "TOOL_ARGS_MISMATCH"
	CodeFactDrift        = "FACT_DRIFT"
)

// Violation is one failed assertion.
type Violation struct {
	Code    string `json:"code"`
	TurnID  string `json:"turn_id,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.TurnID == "" {
		return fmt.Sprintf("[%s] %s", v.Code, v.Message)
	}
	return fmt.Sprintf("[%s] turn %s: %s", v.Code, v.TurnID, v.Message)
}

// CheckTurn evaluates one turn's expectations against its execution result.
// Every check reads only the result; no engine internals are consulted.
func CheckTurn(turn *Turn, result *engine.ExecutionResult) []Violation {
	var violations []Violation
	exp := turn.Expected

	if exp.NextNodeID != nil && result.CurrentNodeID != *exp.NextNodeID {
		violations = append(violations, Violation{
			Code:   CodeNodeMismatch,
			TurnID: turn.TurnID,
			Message: fmt.Sprintf("expected next node %q, got %q",
				*exp.NextNodeID, result.CurrentNodeID),
		})
	}

	if exp.FlowCompleted != nil && result.FlowCompleted != *exp.FlowCompleted {
		violations = append(violations, Violation{
			Code:   CodeNodeMismatch,
			TurnID: turn.TurnID,
			Message: fmt.Sprintf("expected flow_completed=%v, got %v",
				*exp.FlowCompleted, result.FlowCompleted),
		})
	}

	if exp.ToolCall != nil {
		if v, ok := checkToolCall(turn.TurnID, exp.ToolCall, result); !ok {
			violations = append(violations, v)
		}
	}

	for key, want := range exp.FactsAdd {
		rec, ok := result.Memory.Facts[key]
		switch {
		case !ok:
			violations = append(violations, Violation{
				Code:    CodeFactDrift,
				TurnID:  turn.TurnID,
				Message: fmt.Sprintf("expected new fact %q, not present", key),
			})
		case rec.Value != want:
			violations = append(violations, Violation{
				Code:    CodeFactDrift,
				TurnID:  turn.TurnID,
				Message: fmt.Sprintf("fact %q: expected %q, got %q", key, want, rec.Value),
			})
		}
	}

	for key, want := range exp.FactsUpdate {
		rec, ok := result.Memory.Facts[key]
		switch {
		case !ok:
			violations = append(violations, Violation{
				Code:    CodeFactDrift,
				TurnID:  turn.TurnID,
				Message: fmt.Sprintf("expected updated fact %q, not present", key),
			})
		case rec.Value != want:
			violations = append(violations, Violation{
				Code:    CodeFactDrift,
				TurnID:  turn.TurnID,
				Message: fmt.Sprintf("fact %q: expected update to %q, got %q", key, want, rec.Value),
			})
		}
	}

	return violations
}

// CheckFinal evaluates the suite-level assertions against the last turn's
// result.
func CheckFinal(final *FinalAssertions, result *engine.ExecutionResult) []Violation {
	if final == nil {
		return nil
	}
	var violations []Violation

	if final.CurrentNodeID != nil && result.CurrentNodeID != *final.CurrentNodeID {
		violations = append(violations, Violation{
			Code: CodeNodeMismatch,
			Message: fmt.Sprintf("expected final node %q, got %q",
				*final.CurrentNodeID, result.CurrentNodeID),
		})
	}
	if final.FlowCompleted != nil && result.FlowCompleted != *final.FlowCompleted {
		violations = append(violations, Violation{
			Code: CodeNodeMismatch,
			Message: fmt.Sprintf("expected final flow_completed=%v, got %v",
				*final.FlowCompleted, result.FlowCompleted),
		})
	}
	for key, want := range final.Facts {
		rec, ok := result.Memory.Facts[key]
		switch {
		case !ok:
			violations = append(violations, Violation{
				Code:    CodeFactDrift,
				Message: fmt.Sprintf("expected final fact %q, not present", key),
			})
		case rec.Value != want:
			violations = append(violations, Violation{
				Code:    CodeFactDrift,
				Message: fmt.Sprintf("final fact %q: expected %q, got %q", key, want, rec.Value),
			})
		}
	}
	return violations
}

func checkToolCall(turnID string, want *ExpectedToolCall, result *engine.ExecutionResult) (Violation, bool) {
	for _, record := range result.ToolCalls {
		if record.Name != want.Name {
			continue
		}
		if len(want.Args) == 0 {
			return Violation{}, true
		}
		var got map[string]any
		if err := json.Unmarshal(record.Args, &got); err != nil {
			continue
		}
		if argsMatch(want.Args, got) {
			return Violation{}, true
		}
	}
	return Violation{
		Code:    CodeToolArgsMismatch,
		TurnID:  turnID,
		Message: fmt.Sprintf("no call of tool %q matched the expected arguments", want.Name),
	}, false
}

// argsMatch compares expected argument values against the recorded payload.
// Only listed keys are checked; numbers compare through their JSON decoding.
func argsMatch(want map[string]any, got map[string]any) bool {
	for key, wv := range want {
		gv, ok := got[key]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", wv) != fmt.Sprintf("%v", gv) {
			return false
		}
	}
	return true
}
