package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates single ownership of an identity across processes.
// The session manager uses it on top of its in-process lease map.
type DistributedLocker interface {
	// Lock attempts to acquire the lock for key (typically an identity state key).
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
