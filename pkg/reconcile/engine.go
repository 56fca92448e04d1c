package reconcile

import (
	"log/slog"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
)

// DefaultRemoteTimeout bounds every remote call made by the engine, whether or
// not the remote store honours its context.
const DefaultRemoteTimeout = 3 * time.Second

// Engine reconciles snapshots between a local store and an optional remote store.
type Engine struct {
	local     ports.LocalStore
	remote    ports.RemoteStore
	timeout   time.Duration
	logger    *slog.Logger
	remoteKey func(domain.Identity) string
}

// Option configures the Engine.
type Option func(*Engine)

// WithRemote enables the remote store. A nil store means local only.
func WithRemote(remote ports.RemoteStore) Option {
	return func(e *Engine) {
		e.remote = remote
	}
}

// WithTimeout bounds remote loads and saves. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSessionScopedRemote keys remote snapshots by the full state key instead
// of the scenario and user, so each session of a user has its own remote snapshot.
func WithSessionScopedRemote() Option {
	return func(e *Engine) {
		e.remoteKey = domain.Identity.StateKey
	}
}

// New creates a reconciliation engine over local.
func New(local ports.LocalStore, opts ...Option) *Engine {
	e := &Engine{
		local:     local,
		timeout:   DefaultRemoteTimeout,
		logger:    logging.NewNop(),
		remoteKey: domain.Identity.UserKey,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.remote != nil {
		e.remote = middleware.NewTimeoutMiddleware(e.timeout)(e.remote)
	}
	return e
}

// HasRemote reports whether a remote store is configured.
func (e *Engine) HasRemote() bool {
	return e.remote != nil
}

// RemoteKey returns the key used for id in the remote store.
func (e *Engine) RemoteKey(id domain.Identity) string {
	return e.remoteKey(id)
}

// Discard removes the local snapshot for id.
func (e *Engine) Discard(id domain.Identity) error {
	return e.local.Remove(id.StateKey())
}
