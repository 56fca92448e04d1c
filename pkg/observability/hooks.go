package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/chatflow/pkg/domain"
)

// MetricsHooks returns lifecycle hooks that feed m.
func MetricsHooks(m *Metrics) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnHydrated: func(_ context.Context, e *domain.HydrationEvent) {
			m.Hydrations.WithLabelValues(string(e.Outcome), string(e.Source)).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			dest := "node"
			if e.IsEnd {
				dest = "end"
			}
			m.Transitions.WithLabelValues(dest).Inc()
		},
		OnPersisted: func(_ context.Context, e *domain.PersistEvent) {
			if e.LocalAttempted {
				m.StoreWrites.WithLabelValues("local", result(e.LocalErr)).Inc()
			}
			if e.RemoteAttempted {
				m.StoreWrites.WithLabelValues("remote", result(e.RemoteErr)).Inc()
			}
		},
	}
}

// LoggingHooks returns lifecycle hooks that log every event at debug level,
// and degraded persistence at warn level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnHydrated: func(ctx context.Context, e *domain.HydrationEvent) {
			logger.DebugContext(ctx, "session hydrated",
				"key", e.Identity.StateKey(),
				"outcome", e.Outcome,
				"source", e.Source,
				"step", e.CurrentStep,
			)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"key", e.Identity.StateKey(),
				"from", e.FromNodeID,
				"to", e.ToNodeID,
				"end", e.IsEnd,
			)
		},
		OnPersisted: func(ctx context.Context, e *domain.PersistEvent) {
			if e.LocalErr != nil || e.RemoteErr != nil {
				logger.WarnContext(ctx, "persistence degraded",
					"key", e.Identity.StateKey(),
					"local_err", e.LocalErr,
					"remote_err", e.RemoteErr,
				)
			}
		},
	}
}
