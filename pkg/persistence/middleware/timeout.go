package middleware

import (
	"context"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

type timeoutMiddleware struct {
	next ports.RemoteStore
	d    time.Duration
}

// NewTimeoutMiddleware bounds every call to the wrapped store by d. The bound
// holds even for stores that ignore their context: the call keeps running in
// the background and its result is discarded once d has elapsed, in which
// case the caller sees context.DeadlineExceeded.
func NewTimeoutMiddleware(d time.Duration) Middleware {
	return func(next ports.RemoteStore) ports.RemoteStore {
		return &timeoutMiddleware{next: next, d: d}
	}
}

type loadResult struct {
	state *domain.ChatState
	err   error
}

func (m *timeoutMiddleware) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	ctx, cancel := context.WithTimeout(ctx, m.d)
	defer cancel()

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan error, 1)
	go func() {
		done <- m.next.SaveState(ctx, userID, state)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *timeoutMiddleware) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	ctx, cancel := context.WithTimeout(ctx, m.d)
	defer cancel()

	done := make(chan loadResult, 1)
	go func() {
		state, err := m.next.LoadState(ctx, userID)
		done <- loadResult{state: state, err: err}
	}()

	select {
	case r := <-done:
		return r.state, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
