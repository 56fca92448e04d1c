package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocalStore_Contract(t *testing.T) {
	ports.RunLocalStoreContract(t, memory.NewLocalStore())
}

func TestMemoryRemoteStore_Contract(t *testing.T) {
	ports.RunRemoteStoreContract(t, memory.NewRemoteStore())
}

func TestMemoryLocalStore_FailWrites(t *testing.T) {
	store := memory.NewLocalStore()
	require.NoError(t, store.Set("k", "v"))

	boom := errors.New("disk full")
	store.FailWrites(boom)
	assert.ErrorIs(t, store.Set("k", "w"), boom)
	assert.ErrorIs(t, store.Remove("k"), boom)

	got, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestMemoryRemoteStore_LatencyHonorsContext(t *testing.T) {
	store := memory.NewRemoteStore()
	store.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := store.LoadState(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestMemoryRemoteStore_List(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRemoteStore()
	require.NoError(t, store.SaveState(ctx, "b", domain.NewChatState("start")))
	require.NoError(t, store.SaveState(ctx, "a", domain.NewChatState("start")))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
