package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports/mocks"
	"github.com/aretw0/chatflow/pkg/reconcile"
)

const currentHash = "h-current"

var member = domain.Identity{UserID: "alice", ScenarioID: "default", SessionID: "s1"}

func request() reconcile.Request {
	return reconcile.Request{Identity: member, FlowHash: currentHash, InitialNode: "start"}
}

func snapshot(step, hash string, updatedAt int64) *domain.ChatState {
	return &domain.ChatState{
		Answers:     map[string]any{"start": "go"},
		CurrentStep: step,
		Messages:    []domain.ChatMessage{{NodeID: "start", Question: "Ready?", Answer: "go", Timestamp: updatedAt}},
		FlowHash:    hash,
		UpdatedAt:   updatedAt,
	}
}

func putLocal(t *testing.T, local *memory.LocalStore, id domain.Identity, s *domain.ChatState) {
	t.Helper()
	raw, err := domain.EncodeState(s)
	require.NoError(t, err)
	require.NoError(t, local.Set(id.StateKey(), raw))
}

func TestHydrate_Fresh(t *testing.T) {
	local := memory.NewLocalStore()
	e := reconcile.New(local, reconcile.WithRemote(memory.NewRemoteStore()))

	res := e.Hydrate(context.Background(), request())

	assert.Equal(t, domain.LoadedFresh, res.Outcome)
	assert.Equal(t, domain.SourceNone, res.Source)
	assert.Equal(t, "start", res.State.CurrentStep)
	assert.Empty(t, res.State.Answers)
	assert.NotNil(t, res.State.Answers)
	assert.Empty(t, res.State.Messages)
	assert.Nil(t, res.Divergence)
	assert.Equal(t, []string{"fetch-remote", "read-local", "validate-hash", "loaded-fresh"}, res.Trace)
}

func TestHydrate_LocalOnlyResumes(t *testing.T) {
	local := memory.NewLocalStore()
	stored := snapshot("q2", currentHash, 100)
	putLocal(t, local, member, stored)

	res := reconcile.New(local).Hydrate(context.Background(), request())

	assert.Equal(t, domain.LoadedReconciled, res.Outcome)
	assert.Equal(t, domain.SourceLocal, res.Source)
	assert.Equal(t, stored.CurrentStep, res.State.CurrentStep)
	assert.Equal(t, stored.Answers, res.State.Answers)
	assert.Equal(t, stored.Messages[0].NodeID, res.State.Messages[0].NodeID)
	assert.Equal(t, []string{"fetch-remote", "read-local", "validate-hash", "select", "loaded-reconciled"}, res.Trace)
}

func TestHydrate_RemoteNewerWins(t *testing.T) {
	ctx := context.Background()
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	putLocal(t, local, member, snapshot("q2", currentHash, 100))
	require.NoError(t, remote.SaveState(ctx, member.UserKey(), snapshot("end_yes", currentHash, 200)))

	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(ctx, request())

	assert.Equal(t, domain.LoadedReconciled, res.Outcome)
	assert.Equal(t, domain.SourceRemote, res.Source)
	assert.Equal(t, "end_yes", res.State.CurrentStep)

	require.NotNil(t, res.Divergence)
	require.NotNil(t, res.Divergence.CurrentStep)
	assert.Equal(t, "end_yes", *res.Divergence.CurrentStep)
	assert.Nil(t, res.Divergence.FlowHash)
}

func TestHydrate_AgreeingSnapshotsHaveNoDivergence(t *testing.T) {
	ctx := context.Background()
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	putLocal(t, local, member, snapshot("q2", currentHash, 200))
	require.NoError(t, remote.SaveState(ctx, member.UserKey(), snapshot("q2", currentHash, 200)))

	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(ctx, request())

	assert.Equal(t, domain.SourceRemote, res.Source)
	assert.Nil(t, res.Divergence)
}

func TestHydrate_LocalNewerWins(t *testing.T) {
	ctx := context.Background()
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	putLocal(t, local, member, snapshot("end_no", currentHash, 300))
	require.NoError(t, remote.SaveState(ctx, member.UserKey(), snapshot("q2", currentHash, 200)))

	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(ctx, request())

	assert.Equal(t, domain.SourceLocal, res.Source)
	assert.Equal(t, "end_no", res.State.CurrentStep)
}

func TestHydrate_TieFavorsRemote(t *testing.T) {
	ctx := context.Background()
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	putLocal(t, local, member, snapshot("local_step", currentHash, 200))
	require.NoError(t, remote.SaveState(ctx, member.UserKey(), snapshot("remote_step", currentHash, 200)))

	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(ctx, request())

	assert.Equal(t, domain.SourceRemote, res.Source)
	assert.Equal(t, "remote_step", res.State.CurrentStep)
}

func TestHydrate_StaleLocalIsCleared(t *testing.T) {
	local := memory.NewLocalStore()
	putLocal(t, local, member, snapshot("q2", "h-old", 100))

	res := reconcile.New(local).Hydrate(context.Background(), request())

	assert.Equal(t, domain.LoadedCleared, res.Outcome)
	assert.Equal(t, "start", res.State.CurrentStep)
	assert.Empty(t, res.State.Answers)
	assert.Empty(t, res.State.Messages)

	_, ok, err := local.Get(member.StateKey())
	require.NoError(t, err)
	assert.False(t, ok, "stale local snapshot must be removed")
}

func TestHydrate_StaleRemoteClearsValidLocal(t *testing.T) {
	ctx := context.Background()
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	putLocal(t, local, member, snapshot("q2", currentHash, 100))
	require.NoError(t, remote.SaveState(ctx, member.UserKey(), snapshot("q2", "h-old", 50)))

	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(ctx, request())

	assert.Equal(t, domain.LoadedCleared, res.Outcome)
	_, ok, _ := local.Get(member.StateKey())
	assert.False(t, ok, "disagreeing hashes discard the local snapshot too")
}

func TestHydrate_BothStaleSameHash(t *testing.T) {
	ctx := context.Background()
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	putLocal(t, local, member, snapshot("q2", "h-old", 100))
	require.NoError(t, remote.SaveState(ctx, member.UserKey(), snapshot("q2", "h-old", 200)))

	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(ctx, request())

	assert.Equal(t, domain.LoadedCleared, res.Outcome)
}

func TestHydrate_RemoteTimeoutTreatedAsAbsent(t *testing.T) {
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	remote.SetLatency(5 * time.Second)
	putLocal(t, local, member, snapshot("q2", currentHash, 100))

	e := reconcile.New(local, reconcile.WithRemote(remote), reconcile.WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := e.Hydrate(context.Background(), request())

	assert.Less(t, time.Since(start), time.Second, "hydration must complete within the timeout bound")
	assert.Equal(t, domain.LoadedReconciled, res.Outcome)
	assert.Equal(t, domain.SourceLocal, res.Source)
}

func TestHydrate_RemoteIgnoringContextStillBounded(t *testing.T) {
	local := memory.NewLocalStore()
	putLocal(t, local, member, snapshot("q2", currentHash, 100))
	remote := new(mocks.MockRemoteStore)
	remote.On("LoadState", mock.Anything, member.UserKey()).
		After(2*time.Second).
		Return(snapshot("end_yes", currentHash, 500), nil)

	e := reconcile.New(local, reconcile.WithRemote(remote), reconcile.WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := e.Hydrate(context.Background(), request())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.LoadedReconciled, res.Outcome)
	assert.Equal(t, domain.SourceLocal, res.Source)
	assert.Equal(t, "q2", res.State.CurrentStep)
}

func TestHydrate_RemoteErrorTreatedAsAbsent(t *testing.T) {
	local := memory.NewLocalStore()
	remote := memory.NewRemoteStore()
	remote.Fail(errors.New("503"))

	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(context.Background(), request())

	assert.Equal(t, domain.LoadedFresh, res.Outcome)
}

func TestHydrate_CorruptLocalTreatedAsAbsent(t *testing.T) {
	local := memory.NewLocalStore()
	require.NoError(t, local.Set(member.StateKey(), "{not json"))

	res := reconcile.New(local).Hydrate(context.Background(), request())

	assert.Equal(t, domain.LoadedFresh, res.Outcome)
}

func TestHydrate_GuestSkipsRemote(t *testing.T) {
	remote := new(mocks.MockRemoteStore)
	local := memory.NewLocalStore()

	req := request()
	req.Guest = true
	res := reconcile.New(local, reconcile.WithRemote(remote)).Hydrate(context.Background(), req)

	assert.Equal(t, domain.LoadedFresh, res.Outcome)
	remote.AssertNotCalled(t, "LoadState", mock.Anything, mock.Anything)
}

func TestHydrate_FreshSkipsRemote(t *testing.T) {
	remote := new(mocks.MockRemoteStore)

	req := request()
	req.Fresh = true
	res := reconcile.New(memory.NewLocalStore(), reconcile.WithRemote(remote)).Hydrate(context.Background(), req)

	assert.Equal(t, domain.LoadedFresh, res.Outcome)
	assert.Equal(t, "start", res.State.CurrentStep)
	assert.Equal(t, []string{"fetch-remote", "read-local", "validate-hash", "loaded-fresh"}, res.Trace)
	remote.AssertNotCalled(t, "LoadState", mock.Anything, mock.Anything)
}

func TestHydrate_RemoteKeyedByScenarioAndUser(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	survey := member
	survey.ScenarioID = "survey"
	require.NoError(t, remote.SaveState(ctx, survey.UserKey(), snapshot("end_yes", currentHash, 200)))

	e := reconcile.New(memory.NewLocalStore(), reconcile.WithRemote(remote))
	assert.Equal(t, "default:alice", e.RemoteKey(member))

	res := e.Hydrate(ctx, request())
	assert.Equal(t, domain.LoadedFresh, res.Outcome)

	req := request()
	req.Identity = survey
	res = e.Hydrate(ctx, req)
	assert.Equal(t, domain.LoadedReconciled, res.Outcome)
	assert.Equal(t, "end_yes", res.State.CurrentStep)
}

func TestHydrate_SessionScopedRemoteKey(t *testing.T) {
	remote := new(mocks.MockRemoteStore)
	remote.On("LoadState", mock.Anything, member.StateKey()).Return(nil, domain.ErrSnapshotNotFound)

	e := reconcile.New(memory.NewLocalStore(), reconcile.WithRemote(remote), reconcile.WithSessionScopedRemote())
	e.Hydrate(context.Background(), request())

	remote.AssertExpectations(t)
}

func TestHydrate_LocalReadErrorTreatedAsAbsent(t *testing.T) {
	local := new(mocks.MockLocalStore)
	local.On("Get", member.StateKey()).Return("", false, errors.New("io error"))

	res := reconcile.New(local).Hydrate(context.Background(), request())

	assert.Equal(t, domain.LoadedFresh, res.Outcome)
	local.AssertExpectations(t)
}
