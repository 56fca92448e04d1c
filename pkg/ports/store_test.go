package ports_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// MockLocal is a map-backed LocalStore for exercising the contract suite itself.
type MockLocal struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *MockLocal) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MockLocal) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockLocal) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockLocal) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// MockRemote serializes on save to simulate a wire boundary.
type MockRemote struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *MockRemote) SaveState(_ context.Context, userID string, state *domain.ChatState) error {
	raw, err := domain.EncodeState(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = raw
	return nil
}

func (m *MockRemote) LoadState(_ context.Context, userID string) (*domain.ChatState, error) {
	m.mu.Lock()
	raw, ok := m.data[userID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return domain.DecodeState(raw)
}

func (m *MockRemote) DeleteState(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

func TestLocalStore_Contract(t *testing.T) {
	ports.RunLocalStoreContract(t, &MockLocal{data: make(map[string]string)})
}

func TestRemoteStore_Contract(t *testing.T) {
	ports.RunRemoteStoreContract(t, &MockRemote{data: make(map[string]string)})
}
