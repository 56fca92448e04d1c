package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/aretw0/chatflow/pkg/ports"
)

type instrumented struct {
	next    ports.RemoteStore
	metrics *observability.Metrics
}

// NewInstrumentedMiddleware records the latency and result of every remote call.
// A missing snapshot counts as a successful load.
func NewInstrumentedMiddleware(metrics *observability.Metrics) Middleware {
	return func(next ports.RemoteStore) ports.RemoteStore {
		return &instrumented{next: next, metrics: metrics}
	}
}

func (m *instrumented) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	started := time.Now()
	err := m.next.SaveState(ctx, userID, state)
	m.metrics.ObserveRemote("save", started, err)
	return err
}

func (m *instrumented) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	started := time.Now()
	state, err := m.next.LoadState(ctx, userID)
	observed := err
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		observed = nil
	}
	m.metrics.ObserveRemote("load", started, observed)
	return state, err
}
