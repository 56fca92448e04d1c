package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// LocalStore is a synchronous key-value store. It is assumed fast, and it is
// always present. A missing key is reported as ok == false, not as an error.
type LocalStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// KeyLister is implemented by local stores that can enumerate their keys.
type KeyLister interface {
	Keys(prefix string) ([]string, error)
}

// RemoteStore is an optional snapshot store reached over some transport.
// Callers bound every call with a context deadline.
type RemoteStore interface {
	// SaveState persists the snapshot for userID, replacing any previous one.
	SaveState(ctx context.Context, userID string, state *domain.ChatState) error

	// LoadState retrieves the snapshot for userID.
	// Returns domain.ErrSnapshotNotFound if none exists.
	LoadState(ctx context.Context, userID string) (*domain.ChatState, error)
}

// RemoteDeleter is implemented by remote stores that support removal.
type RemoteDeleter interface {
	DeleteState(ctx context.Context, userID string) error
}
