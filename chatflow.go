package chatflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowhash"
	"github.com/aretw0/chatflow/pkg/identity"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/reconcile"
	"github.com/aretw0/chatflow/pkg/rules"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/aretw0/chatflow/pkg/traversal"
)

// DefaultScenario is the scenario id used when none is configured.
const DefaultScenario = domain.DefaultScenario

// Session is an open conversation for one identity.
type Session = session.Session

// Engine is the high-level entry point for the chatflow library.
// It binds one graph to its stores and hands out sessions.
type Engine struct {
	graph      *domain.Graph
	hash       string
	rules      *rules.Registry
	local      ports.LocalStore
	remote     ports.RemoteStore
	resolver   *identity.Resolver
	reconciler *reconcile.Engine
	manager    *session.Manager
	metrics    *observability.Metrics

	// options
	middlewares   []middleware.Middleware
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	strategy      domain.SaveStrategy
	scenario      string
	request       domain.SessionRequest
	initialNode   string
	remoteTimeout time.Duration
	clock         func() time.Time
	sessionScoped bool
	registerer    prometheus.Registerer
	withMetrics   bool
	locker        ports.DistributedLocker
	lockTTL       time.Duration
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLocalStore sets the synchronous device store. Defaults to memory.
func WithLocalStore(store ports.LocalStore) Option {
	return func(e *Engine) {
		e.local = store
	}
}

// WithRemoteStore enables the optional remote store, wrapped by mws with the
// first middleware outermost.
func WithRemoteStore(store ports.RemoteStore, mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.remote = store
		e.middlewares = mws
	}
}

// WithRules sets the registry that resolves computed transitions.
func WithRules(reg *rules.Registry) Option {
	return func(e *Engine) {
		e.rules = reg
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithSaveStrategy selects which transitions are persisted (default always).
func WithSaveStrategy(strategy domain.SaveStrategy) Option {
	return func(e *Engine) {
		e.strategy = strategy
	}
}

// WithScenario namespaces session pointers (default "default").
func WithScenario(id string) Option {
	return func(e *Engine) {
		e.scenario = id
	}
}

// WithSessionRequest sets the default session id request (default auto).
func WithSessionRequest(req domain.SessionRequest) Option {
	return func(e *Engine) {
		e.request = req
	}
}

// WithInitialNode starts fresh conversations somewhere other than the graph start.
func WithInitialNode(id string) Option {
	return func(e *Engine) {
		e.initialNode = id
	}
}

// WithRemoteTimeout bounds remote loads during hydration (default 3s).
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.remoteTimeout = d
	}
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithSessionScopedRemote keys remote snapshots by session instead of by
// scenario and user.
func WithSessionScopedRemote() Option {
	return func(e *Engine) {
		e.sessionScoped = true
	}
}

// WithMetrics registers Prometheus collectors with reg and instruments the
// remote store. A nil reg keeps the collectors private.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.withMetrics = true
		e.registerer = reg
	}
}

// WithLocker guards sessions across processes with a distributed lock.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// New binds graph to its stores. The graph is not linted; dangling references
// surface as domain.ErrNodeNotFound when traversal reaches them.
func New(graph *domain.Graph, opts ...Option) (*Engine, error) {
	if graph == nil {
		return nil, errors.New("graph is required")
	}

	e := &Engine{
		graph:    graph,
		strategy: domain.SaveAlways,
		scenario: DefaultScenario,
		request:  domain.SessionAuto,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	strategy, err := domain.ParseSaveStrategy(string(e.strategy))
	if err != nil {
		return nil, err
	}
	e.strategy = strategy

	if e.initialNode != "" {
		if _, ok := graph.Node(e.initialNode); !ok {
			return nil, fmt.Errorf("initial node %q: %w", e.initialNode, domain.ErrNodeNotFound)
		}
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.local == nil {
		e.local = memory.NewLocalStore()
	}
	if e.rules == nil {
		e.rules = rules.NewRegistry()
	}
	e.hash = flowhash.Sum(graph)
	e.logger = e.logger.With("flow", e.hash)

	if e.withMetrics {
		e.metrics = observability.NewMetrics(e.registerer)
		e.hooks = e.hooks.Merge(observability.MetricsHooks(e.metrics))
	}

	reconcileOpts := []reconcile.Option{reconcile.WithLogger(e.logger)}
	if e.remote != nil {
		remote := middleware.Chain(e.remote, e.middlewares...)
		if e.metrics != nil {
			remote = middleware.NewInstrumentedMiddleware(e.metrics)(remote)
		}
		reconcileOpts = append(reconcileOpts, reconcile.WithRemote(remote))
	}
	if e.remoteTimeout > 0 {
		reconcileOpts = append(reconcileOpts, reconcile.WithTimeout(e.remoteTimeout))
	}
	if e.sessionScoped {
		reconcileOpts = append(reconcileOpts, reconcile.WithSessionScopedRemote())
	}

	e.resolver = identity.NewResolver(e.local, identity.WithLogger(e.logger))
	e.reconciler = reconcile.New(e.local, reconcileOpts...)

	managerOpts := []session.ManagerOption{
		session.WithManagerLogger(e.logger),
		session.WithSessionOptions(
			session.WithLogger(e.logger),
			session.WithLifecycleHooks(e.hooks),
			session.WithClock(e.clock),
		),
	}
	if e.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(e.locker, e.lockTTL))
	}

	e.manager = session.NewManager(session.Deps{
		Traversal:  traversal.New(graph, e.rules),
		Reconciler: e.reconciler,
		Resolver:   e.resolver,
		FlowHash:   e.hash,
	}, managerOpts...)

	return e, nil
}

// Open resolves the identity for userID with the default session request,
// then opens and hydrates its session. An empty userID selects the device's
// anonymous id.
func (e *Engine) Open(ctx context.Context, userID string) (*Session, error) {
	return e.OpenSession(ctx, userID, e.request)
}

// OpenSession is Open with an explicit session request.
// It returns domain.ErrSessionBusy while the same identity is open elsewhere,
// leaving the last-session pointer untouched. domain.SessionNew starts a
// fresh conversation and never reads the remote snapshot.
func (e *Engine) OpenSession(ctx context.Context, userID string, req domain.SessionRequest) (*Session, error) {
	id := e.resolver.Peek(userID, e.scenario, req)
	s, err := e.manager.Open(ctx, session.Config{
		Identity:    id,
		Strategy:    e.strategy,
		InitialNode: e.initialNode,
		Fresh:       req.IsNew(),
	})
	if err != nil {
		return nil, err
	}
	e.resolver.Point(id.ScenarioID, id.UserID, id.SessionID)
	return s, nil
}

// Session returns the open session for a state key.
func (e *Engine) Session(key string) (*Session, bool) {
	return e.manager.Get(key)
}

// Sessions lists the state keys of open sessions.
func (e *Engine) Sessions() []string {
	return e.manager.Keys()
}

// Discard deletes the device snapshot for an identity without opening it.
func (e *Engine) Discard(id domain.Identity) error {
	return e.reconciler.Discard(id)
}

// Close closes every open session.
func (e *Engine) Close() {
	e.manager.CloseAll()
}

// Graph returns the bound graph.
func (e *Engine) Graph() *domain.Graph {
	return e.graph
}

// FlowHash returns the fingerprint stamped on every snapshot.
func (e *Engine) FlowHash() string {
	return e.hash
}

// Rules returns the registry resolving computed transitions.
func (e *Engine) Rules() *rules.Registry {
	return e.rules
}

// Metrics returns the collectors enabled by WithMetrics, or nil.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// Scenario returns the configured scenario id.
func (e *Engine) Scenario() string {
	return e.scenario
}
