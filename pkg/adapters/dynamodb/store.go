// Package dynamodb implements a remote snapshot store on a single DynamoDB table.
//
// Items use the key schema PK = "USER#<id>", SK = "STATE" and carry the encoded
// snapshot plus a few projected attributes for inspection.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aretw0/chatflow/pkg/domain"
)

const (
	skState = "STATE"
	skMeta  = "META"
)

// API is the minimal DynamoDB surface the Store needs.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store implements ports.RemoteStore on DynamoDB.
type Store struct {
	api   API
	table string
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Store)

// WithTTL stamps items with a "ttl" attribute so DynamoDB expires them.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New creates a Store over an existing client.
func New(api API, table string, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamodb: api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("dynamodb: table name must not be empty")
	}
	s := &Store{api: api, table: table, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dial builds a client from the default AWS configuration chain.
func Dial(ctx context.Context, table string, opts ...Option) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), table, opts...)
}

func userPK(userID string) string {
	return "USER#" + userID
}

func (s *Store) key(userID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *Store) stamp(item map[string]types.AttributeValue) {
	if s.ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)}
	}
}

// SaveState writes the snapshot item for userID, replacing any previous one.
func (s *Store) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}

	item := s.key(userID, skState)
	item["state"] = &types.AttributeValueMemberS{Value: data}
	item["currentStep"] = &types.AttributeValueMemberS{Value: state.CurrentStep}
	item["flowHash"] = &types.AttributeValueMemberS{Value: state.FlowHash}
	item["updatedAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(state.UpdatedAt, 10)}
	s.stamp(item)

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb: SaveState: %w", err)
	}
	return nil
}

// LoadState reads the snapshot item for userID.
func (s *Store) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(userID, skState),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: LoadState: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}

	data, err := strAttr(out.Item, "state")
	if err != nil {
		return nil, err
	}
	if s.expired(out.Item) {
		return nil, domain.ErrSnapshotNotFound
	}
	return domain.DecodeState(data)
}

// expired reports items past their ttl; DynamoDB deletes them lazily.
func (s *Store) expired(item map[string]types.AttributeValue) bool {
	v, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	at, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return false
	}
	return s.now().Unix() >= at
}

// DeleteState removes the snapshot and metadata items for userID.
func (s *Store) DeleteState(ctx context.Context, userID string) error {
	for _, sk := range []string{skState, skMeta} {
		_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key:       s.key(userID, sk),
		})
		if err != nil {
			return fmt.Errorf("dynamodb: DeleteState: %w", err)
		}
	}
	return nil
}

// WriteMetadata stores the progress summary item for userID.
func (s *Store) WriteMetadata(ctx context.Context, userID string, meta domain.SnapshotMetadata) error {
	item := s.key(userID, skMeta)
	item["currentStep"] = &types.AttributeValueMemberS{Value: meta.CurrentStep}
	item["flowHash"] = &types.AttributeValueMemberS{Value: meta.FlowHash}
	item["updatedAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.UpdatedAt, 10)}
	item["answerCount"] = &types.AttributeValueMemberN{Value: strconv.Itoa(meta.AnswerCount)}
	item["messageCount"] = &types.AttributeValueMemberN{Value: strconv.Itoa(meta.MessageCount)}
	s.stamp(item)

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb: WriteMetadata: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("dynamodb: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamodb: attribute %q is not a string", key)
	}
	return s.Value, nil
}
