package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports/mocks"
)

func TestMetadataOnly(t *testing.T) {
	ctx := context.Background()
	var got domain.SnapshotMetadata
	var gotUser string
	store := middleware.NewMetadataOnly(middleware.MetadataWriterFunc(
		func(_ context.Context, userID string, meta domain.SnapshotMetadata) error {
			gotUser, got = userID, meta
			return nil
		}))

	state := secretState()
	require.NoError(t, store.SaveState(ctx, "alice", state))

	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, domain.SnapshotMetadata{
		CurrentStep:  "q2",
		FlowHash:     "hash-1",
		UpdatedAt:    5,
		AnswerCount:  1,
		MessageCount: 1,
	}, got)

	_, err := store.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestLocalOnly(t *testing.T) {
	ctx := context.Background()
	store := middleware.NewLocalOnly()
	require.NoError(t, store.SaveState(ctx, "alice", secretState()))
	_, err := store.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := memory.NewRemoteStore()
	slow.SetLatency(time.Second)
	store := middleware.NewTimeoutMiddleware(10 * time.Millisecond)(slow)

	start := time.Now()
	err := store.SaveState(context.Background(), "alice", secretState())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = store.LoadState(context.Background(), "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTimeoutMiddleware_StoreIgnoringContext(t *testing.T) {
	next := new(mocks.MockRemoteStore)
	// After sleeps without looking at the context.
	next.On("SaveState", mock.Anything, "alice", mock.Anything).After(2 * time.Second).Return(nil)
	next.On("LoadState", mock.Anything, "alice").After(2*time.Second).Return(secretState(), nil)
	store := middleware.NewTimeoutMiddleware(20 * time.Millisecond)(next)

	start := time.Now()
	err := store.SaveState(context.Background(), "alice", secretState())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	state, err := store.LoadState(context.Background(), "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, state)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimeoutMiddleware_PassesFastResults(t *testing.T) {
	next := new(mocks.MockRemoteStore)
	next.On("LoadState", mock.Anything, "alice").Return(secretState(), nil).Once()
	next.On("SaveState", mock.Anything, "alice", mock.Anything).Return(errors.New("boom")).Once()
	store := middleware.NewTimeoutMiddleware(time.Second)(next)

	state, err := store.LoadState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "q2", state.CurrentStep)
	assert.EqualError(t, store.SaveState(context.Background(), "alice", secretState()), "boom")
	next.AssertExpectations(t)
}

func TestInstrumentedMiddleware(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(nil)

	next := new(mocks.MockRemoteStore)
	next.On("SaveState", mock.Anything, "alice", mock.Anything).Return(errors.New("boom")).Once()
	next.On("LoadState", mock.Anything, "alice").Return(nil, domain.ErrSnapshotNotFound).Once()

	store := middleware.NewInstrumentedMiddleware(metrics)(next)
	assert.Error(t, store.SaveState(ctx, "alice", secretState()))
	_, err := store.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.RemoteLatency))
	next.AssertExpectations(t)
}

func TestChain_Order(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewRemoteStore()

	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc := mustEncryption(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	// PII runs first, so the encrypted payload already holds the mask.
	store := middleware.Chain(underlying, pii, enc)
	require.NoError(t, store.SaveState(ctx, "alice", secretState()))

	loaded, err := store.LoadState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Answers["secret"])

	raw, err := underlying.LoadState(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, raw.Answers, "__encrypted__")
}
