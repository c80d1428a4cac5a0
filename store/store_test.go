package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowturn/types"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.TTL = time.Hour

	s, err := NewRedisStore(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		ConversationID: "conv-abc",
		CurrentNodeID:  "conv_1",
		History: types.History{
			{Role: types.RoleUser, Content: "hi", TurnIndex: 0},
			{Role: types.RoleAssistant, Content: "hello", TurnIndex: 0},
		},
		Memory: types.MemoryState{
			TurnIndex: 1,
			Facts:     types.Facts{"user_name": {Key: "user_name", Value: "Ada", SourceTurn: 0}},
		},
	}
}

func TestRedisStore_SaveLoad(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, s.Save(ctx, snap))
	assert.False(t, snap.UpdatedAt.IsZero())

	loaded, err := s.Load(ctx, "conv-abc")
	require.NoError(t, err)
	assert.Equal(t, snap.CurrentNodeID, loaded.CurrentNodeID)
	assert.Equal(t, snap.History, loaded.History)
	assert.Equal(t, snap.Memory.TurnIndex, loaded.Memory.TurnIndex)
	assert.Equal(t, "Ada", loaded.Memory.Facts["user_name"].Value)
}

func TestRedisStore_LoadMissing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SaveRequiresID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.Save(context.Background(), &Snapshot{})
	assert.Error(t, err)
}

func TestRedisStore_Delete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot()))
	require.NoError(t, s.Delete(ctx, "conv-abc"))

	_, err := s.Load(ctx, "conv-abc")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "conv-abc"), "deleting a missing snapshot is not an error")
}

func TestRedisStore_Overwrite(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, s.Save(ctx, snap))

	snap.CurrentNodeID = "conv_2"
	snap.Memory.TurnIndex = 2
	require.NoError(t, s.Save(ctx, snap))

	loaded, err := s.Load(ctx, "conv-abc")
	require.NoError(t, err)
	assert.Equal(t, "conv_2", loaded.CurrentNodeID)
	assert.Equal(t, 2, loaded.Memory.TurnIndex)
}
