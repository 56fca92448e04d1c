package dynamodb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// fakeDynamo keeps items in memory keyed by PK and SK.
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	err     error
	lastPut *dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(key map[string]types.AttributeValue) string {
	pk := key["PK"].(*types.AttributeValueMemberS).Value
	sk := key["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.lastPut = in
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func mustNewStore(t *testing.T, db *fakeDynamo, opts ...Option) *Store {
	t.Helper()
	s, err := New(db, "chat-states", opts...)
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	assert.Error(t, err)
	_, err = New(newFakeDynamo(), "  ")
	assert.Error(t, err)
}

func TestStore_Contract(t *testing.T) {
	ports.RunRemoteStoreContract(t, mustNewStore(t, newFakeDynamo()))
}

func TestStore_ItemShape(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)

	state := domain.NewChatState("q2")
	state.FlowHash = "h1"
	state.UpdatedAt = 42
	require.NoError(t, s.SaveState(context.Background(), "alice", state))

	item := db.lastPut.Item
	assert.Equal(t, "USER#alice", item["PK"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "STATE", item["SK"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "q2", item["currentStep"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "h1", item["flowHash"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "42", item["updatedAt"].(*types.AttributeValueMemberN).Value)
	assert.NotContains(t, item, "ttl")
}

func TestStore_TTL(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db, WithTTL(time.Hour))
	base := time.Unix(1_000, 0)
	s.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, s.SaveState(ctx, "alice", domain.NewChatState("start")))
	assert.Equal(t, "4600", db.lastPut.Item["ttl"].(*types.AttributeValueMemberN).Value)

	_, err := s.LoadState(ctx, "alice")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = s.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestStore_Metadata(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)
	ctx := context.Background()

	require.NoError(t, s.WriteMetadata(ctx, "alice", domain.SnapshotMetadata{CurrentStep: "q2", AnswerCount: 3}))
	assert.Equal(t, "META", db.lastPut.Item["SK"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "3", db.lastPut.Item["answerCount"].(*types.AttributeValueMemberN).Value)

	_, err := s.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	require.NoError(t, s.DeleteState(ctx, "alice"))
	assert.Empty(t, db.items)
}

func TestStore_Errors(t *testing.T) {
	db := newFakeDynamo()
	db.err = errors.New("throttled")
	s := mustNewStore(t, db)

	_, err := s.LoadState(context.Background(), "alice")
	assert.ErrorContains(t, err, "throttled")
	assert.NotErrorIs(t, err, domain.ErrSnapshotNotFound)

	err = s.SaveState(context.Background(), "alice", domain.NewChatState("start"))
	assert.ErrorContains(t, err, "throttled")
}
