package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aretw0/chatflow/pkg/domain"
)

// MockRemoteStore is a mock implementation of ports.RemoteStore
type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	args := m.Called(ctx, userID, state)
	return args.Error(0)
}

func (m *MockRemoteStore) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatState), args.Error(1)
}

// MockLocalStore is a mock implementation of ports.LocalStore
type MockLocalStore struct {
	mock.Mock
}

func (m *MockLocalStore) Get(key string) (string, bool, error) {
	args := m.Called(key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocalStore) Set(key, value string) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *MockLocalStore) Remove(key string) error {
	args := m.Called(key)
	return args.Error(0)
}
