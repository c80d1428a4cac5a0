package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowturn/types"
)

type countingProvider struct {
	calls int
}

func (c *countingProvider) Completion(context.Context, *ChatRequest) (*ChatResponse, error) {
	c.calls++
	return &ChatResponse{
		Choices: []ChatChoice{{Message: types.Message{Role: types.RoleAssistant, Content: "ok"}}},
	}, nil
}

func (c *countingProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (c *countingProvider) Name() string { return "counting" }

func TestRateLimited_Delegates(t *testing.T) {
	t.Parallel()
	inner := &countingProvider{}
	limited := NewRateLimited(inner, 100, 10, nil)

	resp, err := limited.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.First().Content)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "counting", limited.Name())
}

func TestRateLimited_CancelledWaitIsRateLimited(t *testing.T) {
	t.Parallel()
	inner := &countingProvider{}
	// Burst 1 at a tiny rate: the second call has to wait.
	limited := NewRateLimited(inner, 0.001, 1, nil)

	_, err := limited.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = limited.Completion(ctx, &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.Equal(t, 1, inner.calls, "inner provider must not be called when the wait aborts")
}

func TestRateLimited_BurstFloor(t *testing.T) {
	t.Parallel()
	limited := NewRateLimited(&countingProvider{}, 1, 0, nil)
	_, err := limited.Completion(context.Background(), &ChatRequest{})
	assert.NoError(t, err)
}
