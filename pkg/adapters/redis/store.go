// Package redis implements a remote snapshot store and a distributed locker on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/chatflow/pkg/domain"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "chatflow:state:"

// Store implements ports.RemoteStore using Redis.
// Snapshots live under prefix+userID as JSON; an index ZSET tracks live users.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for snapshots.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for snapshots.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(userID string) string {
	return s.prefix + userID
}

func (s *Store) metaKey(userID string) string {
	return s.prefix + "meta:" + userID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// indexScore is the expiry of an entry; far future when there is no TTL.
func (s *Store) indexScore() float64 {
	if s.ttl == 0 {
		return 4102444800 // 2100-01-01
	}
	return float64(time.Now().Add(s.ttl).Unix())
}

// SaveState persists the snapshot for userID.
func (s *Store) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(userID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.indexScore(), Member: userID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// LoadState retrieves the snapshot for userID.
func (s *Store) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return domain.DecodeState(val)
}

// DeleteState removes the snapshot and metadata for userID.
func (s *Store) DeleteState(ctx context.Context, userID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(userID), s.metaKey(userID))
	pipe.ZRem(ctx, s.indexKey(), userID)

	_, err := pipe.Exec(ctx)
	return err
}

// WriteMetadata stores only progress metadata as a hash, for hybrid setups
// where conversations stay on the device.
func (s *Store) WriteMetadata(ctx context.Context, userID string, meta domain.SnapshotMetadata) error {
	key := s.metaKey(userID)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key,
		"currentStep", meta.CurrentStep,
		"flowHash", meta.FlowHash,
		"updatedAt", meta.UpdatedAt,
		"answerCount", meta.AnswerCount,
		"messageCount", meta.MessageCount,
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.indexScore(), Member: userID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write metadata to redis: %w", err)
	}
	return nil
}

// List returns the users holding a live snapshot or metadata entry.
func (s *Store) List(ctx context.Context) ([]string, error) {
	// Lazy cleanup of expired entries.
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired entries: %w", err)
	}

	users, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return users, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
