package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
)

// LocalStore implements ports.LocalStore in memory.
// Safe for concurrent use.
type LocalStore struct {
	data    map[string]string
	mu      sync.RWMutex
	failErr error
}

// NewLocalStore creates a new in-memory local store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		data: make(map[string]string),
	}
}

// FailWrites makes every subsequent Set and Remove return err. Nil restores normal behavior.
func (s *LocalStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Get returns the value stored under key.
func (s *LocalStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *LocalStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.data[key] = value
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *LocalStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	delete(s.data, key)
	return nil
}

// Keys returns the sorted keys that start with prefix.
func (s *LocalStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// RemoteStore implements ports.RemoteStore in memory.
// Snapshots are held in their encoded form, so loads never alias saved values.
type RemoteStore struct {
	data    map[string]string
	mu      sync.RWMutex
	latency time.Duration
	failErr error
}

// NewRemoteStore creates a new in-memory remote store.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		data: make(map[string]string),
	}
}

// SetLatency delays every call by d, honoring context cancellation.
func (s *RemoteStore) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Fail makes every subsequent call return err. Nil restores normal behavior.
func (s *RemoteStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *RemoteStore) wait(ctx context.Context) error {
	s.mu.RLock()
	latency, failErr := s.latency, s.failErr
	s.mu.RUnlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return failErr
}

// SaveState persists the snapshot for userID.
func (s *RemoteStore) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	raw, err := domain.EncodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = raw
	return nil
}

// LoadState retrieves the snapshot for userID.
func (s *RemoteStore) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	raw, ok := s.data[userID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return domain.DecodeState(raw)
}

// DeleteState removes the snapshot for userID.
func (s *RemoteStore) DeleteState(ctx context.Context, userID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

// List returns the user ids holding a snapshot.
func (s *RemoteStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
