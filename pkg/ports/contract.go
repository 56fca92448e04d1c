package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLocalStoreContract runs a suite of tests to verify that a LocalStore
// implementation adheres to the defined interface contract.
func RunLocalStoreContract(t *testing.T, store LocalStore) {
	prefix := "contract:" + time.Now().Format("20060102150405") + ":"

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "a"
		require.NoError(t, store.Set(key, `{"hello":"world"}`))

		got, ok, err := store.Get(key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"hello":"world"}`, got)
	})

	t.Run("Get Missing", func(t *testing.T) {
		got, ok, err := store.Get(prefix + "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "b"
		require.NoError(t, store.Set(key, "first"))
		require.NoError(t, store.Set(key, "second"))

		got, ok, err := store.Get(key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", got)
	})

	t.Run("Remove", func(t *testing.T) {
		key := prefix + "c"
		require.NoError(t, store.Set(key, "x"))
		require.NoError(t, store.Remove(key))

		_, ok, err := store.Get(key)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, store.Remove(key), "removing a missing key is not an error")
	})

	t.Run("Keys With Separators", func(t *testing.T) {
		key := prefix + "default:user/1:session 2"
		require.NoError(t, store.Set(key, "v"))
		got, ok, err := store.Get(key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", got)
	})

	if lister, ok := store.(KeyLister); ok {
		t.Run("Keys", func(t *testing.T) {
			p := prefix + "list:"
			require.NoError(t, store.Set(p+"1", "a"))
			require.NoError(t, store.Set(p+"2", "b"))
			require.NoError(t, store.Set(prefix+"other", "c"))

			keys, err := lister.Keys(p)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{p + "1", p + "2"}, keys)
		})
	}
}

// RunRemoteStoreContract runs a suite of tests to verify that a RemoteStore
// implementation adheres to the defined interface contract.
func RunRemoteStoreContract(t *testing.T, store RemoteStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := sampleState()

		require.NoError(t, store.SaveState(ctx, userID, state), "SaveState should not return error")

		loaded, err := store.LoadState(ctx, userID)
		require.NoError(t, err, "LoadState should not return error")
		assert.Equal(t, state.CurrentStep, loaded.CurrentStep)
		assert.Equal(t, state.FlowHash, loaded.FlowHash)
		assert.Equal(t, state.UpdatedAt, loaded.UpdatedAt)
		assert.Equal(t, "yes", loaded.Answers["q2"])
		require.Len(t, loaded.Messages, 2)
		assert.Equal(t, "q2", loaded.Messages[1].NodeID)
		// Numbers survive as json.Number; compare their text.
		assert.Equal(t, "42", fmt.Sprint(loaded.Answers["age"]))
	})

	t.Run("Overwrite", func(t *testing.T) {
		state := sampleState()
		state.CurrentStep = "end_no"
		state.UpdatedAt++
		require.NoError(t, store.SaveState(ctx, userID, state))

		loaded, err := store.LoadState(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "end_no", loaded.CurrentStep)
		assert.Equal(t, state.UpdatedAt, loaded.UpdatedAt)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadState(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Save Does Not Alias", func(t *testing.T) {
		id := userID + "-alias"
		state := sampleState()
		require.NoError(t, store.SaveState(ctx, id, state))
		state.Answers["q2"] = "mutated"

		loaded, err := store.LoadState(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "yes", loaded.Answers["q2"])
	})

	if deleter, ok := store.(RemoteDeleter); ok {
		t.Run("Delete", func(t *testing.T) {
			id := userID + "-delete"
			require.NoError(t, store.SaveState(ctx, id, sampleState()))
			require.NoError(t, deleter.DeleteState(ctx, id))

			_, err := store.LoadState(ctx, id)
			assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "LoadState after DeleteState should return ErrSnapshotNotFound")
		})
	}
}

func sampleState() *domain.ChatState {
	return &domain.ChatState{
		Answers: map[string]any{
			"start": "go",
			"q2":    "yes",
			"age":   json.Number("42"),
		},
		CurrentStep: "end_yes",
		Messages: []domain.ChatMessage{
			{NodeID: "start", Question: "Ready?", Answer: "go", Timestamp: 1700000000000},
			{NodeID: "q2", Question: "Continue?", Answer: "yes", Timestamp: 1700000001000},
		},
		FlowHash:  "abc123",
		UpdatedAt: 1700000001000,
	}
}
