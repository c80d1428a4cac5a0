package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowturn/types"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	g, err := New(testNodes())
	require.NoError(t, err)
	return NewProcessor(g, nil)
}

func TestApply_StartTransition(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	res, err := p.Apply("start", json.RawMessage(`{"current_node_id":"start","next_node_id":"conv_1"}`))
	require.NoError(t, err)
	assert.Equal(t, "conv_1", res.NextNodeID)
	assert.False(t, res.Completed)
	require.NotNil(t, res.Descriptor)
	assert.Equal(t, "conv_1", res.Descriptor.ID)
	assert.Contains(t, res.Instructions, "conv_1")
}

func TestApply_StartRequiresNextNode(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	_, err := p.Apply("start", json.RawMessage(`{"current_node_id":"start"}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolArgsMismatch, types.GetErrorCode(err))
}

func TestApply_StartUnknownTarget(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	_, err := p.Apply("start", json.RawMessage(`{"current_node_id":"start","next_node_id":"nope"}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrNodeMismatch, types.GetErrorCode(err))
}

func TestApply_ConversationOption(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	res, err := p.Apply("conv_1", json.RawMessage(`{"current_node_id":"conv_1","option_id":0}`))
	require.NoError(t, err)
	assert.Equal(t, "conv_2", res.NextNodeID)
	assert.False(t, res.Completed)
}

func TestApply_ConversationRemainSentinel(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	res, err := p.Apply("conv_1", json.RawMessage(`{"current_node_id":"conv_1","option_id":-1}`))
	require.NoError(t, err)
	assert.Equal(t, "conv_1", res.NextNodeID)
	assert.False(t, res.Completed)
	assert.Contains(t, res.Instructions, "Remain")
}

func TestApply_ConversationInvalidOption(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	_, err := p.Apply("conv_1", json.RawMessage(`{"current_node_id":"conv_1","option_id":42}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolArgsMismatch, types.GetErrorCode(err))
}

func TestApply_ConversationMissingOption(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	_, err := p.Apply("conv_1", json.RawMessage(`{"current_node_id":"conv_1"}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolArgsMismatch, types.GetErrorCode(err))
}

func TestApply_TransitionToStop(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	res, err := p.Apply("conv_1", json.RawMessage(`{"current_node_id":"conv_1","option_id":1}`))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "end", res.NextNodeID)
	require.NotNil(t, res.Descriptor)
	assert.Equal(t, NodeStop, res.Descriptor.Type)
}

func TestApply_StopNodeNeverExecutes(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	_, err := p.Apply("end", json.RawMessage(`{"current_node_id":"end","next_node_id":"start"}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrNodeMismatch, types.GetErrorCode(err))
}

func TestApply_UnknownCurrentNode(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	_, err := p.Apply("ghost", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrNodeMismatch, types.GetErrorCode(err))
}

func TestApply_WrongShapeForNodeType(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t)

	// conversation-shaped args against a start node
	_, err := p.Apply("start", json.RawMessage(`{"current_node_id":"start","option_id":0}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolArgsMismatch, types.GetErrorCode(err))

	// start-shaped args against a conversation node
	_, err = p.Apply("conv_1", json.RawMessage(`{"current_node_id":"conv_1","next_node_id":"end"}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolArgsMismatch, types.GetErrorCode(err))

	// current_node_id mismatch
	_, err = p.Apply("conv_1", json.RawMessage(`{"current_node_id":"conv_2","option_id":0}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolArgsMismatch, types.GetErrorCode(err))
}
