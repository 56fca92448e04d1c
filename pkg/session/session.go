package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/identity"
	"github.com/aretw0/chatflow/pkg/reconcile"
	"github.com/aretw0/chatflow/pkg/traversal"
)

// Deps are the collaborators shared by every session of an engine.
type Deps struct {
	Traversal  *traversal.Engine
	Reconciler *reconcile.Engine
	Resolver   *identity.Resolver
	// FlowHash is the fingerprint of the graph behind Traversal.
	FlowHash string
}

// Config describes one session.
type Config struct {
	Identity    domain.Identity
	Strategy    domain.SaveStrategy
	InitialNode string
	// Fresh starts a new conversation without reading the remote snapshot.
	Fresh bool
}

// Session is the orchestrator for a single identity. Safe for concurrent use.
type Session struct {
	deps   Deps
	cfg    Config
	guest  bool
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	clock  func() time.Time

	// writeMu serializes transitions and resets; hydrateMu guards the single
	// in-flight hydration. Lock order: writeMu, hydrateMu, mu.
	writeMu   sync.Mutex
	hydrateMu sync.Mutex

	mu        sync.RWMutex
	identity  domain.Identity
	state     *domain.ChatState
	persisted bool
	hydrated  bool
	closed    bool
	result    reconcile.Result

	// rekey lets an owning Manager move the lease when Reset changes the session id.
	rekey   func(from, to domain.Identity) error
	onClose func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger configures a logger for the Session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// New creates a session. It must be hydrated before answers are accepted.
func New(deps Deps, cfg Config, opts ...Option) *Session {
	if cfg.Strategy == "" {
		cfg.Strategy = domain.SaveAlways
	}
	if cfg.InitialNode == "" {
		cfg.InitialNode = deps.Traversal.Graph().StartNode()
	}

	s := &Session{
		deps:     deps,
		cfg:      cfg,
		guest:    identity.IsGuest(cfg.Identity.UserID),
		logger:   logging.NewNop(),
		clock:    time.Now,
		identity: cfg.Identity,
		state:    domain.NewChatState(cfg.InitialNode),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate runs the load path once. Concurrent and repeated calls wait for and
// share the first result.
func (s *Session) Hydrate(ctx context.Context) error {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()

	s.mu.RLock()
	done, closed, id := s.hydrated, s.closed, s.identity
	s.mu.RUnlock()

	if closed {
		return domain.ErrSessionClosed
	}
	if done {
		return nil
	}

	s.load(ctx, id, s.cfg.Fresh)
	return nil
}

// load runs the reconciliation engine for id and publishes the result.
// The caller holds hydrateMu.
func (s *Session) load(ctx context.Context, id domain.Identity, fresh bool) {
	res := s.deps.Reconciler.Hydrate(ctx, reconcile.Request{
		Identity:    id,
		Guest:       s.guest,
		FlowHash:    s.deps.FlowHash,
		InitialNode: s.cfg.InitialNode,
		Fresh:       fresh,
	})

	s.mu.Lock()
	s.identity = id
	s.state = res.State
	s.result = res
	s.persisted = res.Source != domain.SourceNone
	s.hydrated = true
	s.mu.Unlock()

	if s.hooks.OnHydrated != nil {
		s.hooks.OnHydrated(ctx, &domain.HydrationEvent{
			EventBase:   domain.EventBase{Timestamp: s.clock(), Type: domain.EventHydrated, Identity: id},
			Outcome:     res.Outcome,
			Source:      res.Source,
			CurrentStep: res.State.CurrentStep,
		})
	}
}

// SubmitInput applies free text. Whitespace-only input is ignored.
func (s *Session) SubmitInput(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return s.SubmitAnswer(ctx, trimmed)
}

// SubmitAnswer answers the current node and advances the session.
// Only integrity and lifecycle errors are returned; persistence failures are
// logged and visible through Persisted.
func (s *Session) SubmitAnswer(ctx context.Context, value any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	hydrated, closed, id := s.hydrated, s.closed, s.identity
	current := s.state
	s.mu.RUnlock()

	if closed {
		return domain.ErrSessionClosed
	}
	if !hydrated {
		return domain.ErrNotHydrated
	}

	node, err := s.deps.Traversal.GetCurrentNode(current.CurrentStep)
	if err != nil {
		return err
	}
	if node.IsEnd {
		return fmt.Errorf("node %q: %w", node.ID, domain.ErrFlowEnded)
	}

	nextID, err := s.deps.Traversal.GetNextStep(node.ID, value)
	if err != nil {
		return err
	}

	destIsEnd := false
	if dest, err := s.deps.Traversal.GetCurrentNode(nextID); err == nil {
		destIsEnd = dest.IsEnd
	}

	now := s.clock().UnixMilli()
	next := current.Clone()
	next.Answers[node.ID] = value
	next.Messages = append(next.Messages, domain.ChatMessage{
		NodeID:    node.ID,
		Question:  node.Question,
		Answer:    value,
		Timestamp: now,
	})
	next.CurrentStep = nextID
	next.FlowHash = s.deps.FlowHash
	next.UpdatedAt = now
	// Detach from caller-owned values such as maps passed as answers.
	next = next.Clone()

	targets := reconcile.Plan(s.cfg.Strategy, destIsEnd, s.guest)
	var report reconcile.Report
	if targets.Any() {
		report = s.deps.Reconciler.Persist(ctx, id, next, targets)
	}

	s.mu.Lock()
	s.state = next
	s.persisted = report.LocalWritten || report.RemoteWritten
	s.mu.Unlock()

	s.logger.Debug("transition applied",
		"key", id.StateKey(), "from", node.ID, "to", nextID, "end", destIsEnd)

	if s.hooks.OnTransition != nil {
		s.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase:  domain.EventBase{Timestamp: s.clock(), Type: domain.EventTransition, Identity: id},
			FromNodeID: node.ID,
			ToNodeID:   nextID,
			Answer:     value,
			IsEnd:      destIsEnd,
		})
	}
	if targets.Any() && s.hooks.OnPersisted != nil {
		s.hooks.OnPersisted(ctx, &domain.PersistEvent{
			EventBase:       domain.EventBase{Timestamp: s.clock(), Type: domain.EventPersisted, Identity: id},
			LocalAttempted:  report.LocalAttempted,
			LocalErr:        report.LocalErr,
			RemoteAttempted: report.RemoteAttempted,
			RemoteErr:       report.RemoteErr,
		})
	}
	return nil
}

// Reset switches to sessionID, or to a freshly minted id when empty, records it
// as the last session and rehydrates from that session's snapshot. A minted id
// starts a fresh conversation and skips the remote snapshot.
func (s *Session) Reset(ctx context.Context, sessionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()

	s.mu.RLock()
	closed, from := s.closed, s.identity
	s.mu.RUnlock()
	if closed {
		return domain.ErrSessionClosed
	}

	sessionID = strings.TrimSpace(sessionID)
	fresh := sessionID == ""
	if fresh {
		sessionID = s.deps.Resolver.NewSessionID()
	}
	to := from
	to.SessionID = sessionID

	if s.rekey != nil && to != from {
		if err := s.rekey(from, to); err != nil {
			return err
		}
	}
	s.deps.Resolver.Point(to.ScenarioID, to.UserID, to.SessionID)

	s.load(ctx, to, fresh)
	return nil
}

// Close releases the session. Further operations return ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() *domain.ChatState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Node returns the node at the current step.
func (s *Session) Node() (domain.Node, error) {
	s.mu.RLock()
	step := s.state.CurrentStep
	s.mu.RUnlock()
	return s.deps.Traversal.GetCurrentNode(step)
}

// IsEnd reports whether the current step is an end node.
func (s *Session) IsEnd() bool {
	node, err := s.Node()
	return err == nil && node.IsEnd
}

// Identity returns the identity the session is bound to.
func (s *Session) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Hydrated reports whether the load path completed.
func (s *Session) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Outcome returns the terminal state of the last hydration.
func (s *Session) Outcome() domain.HydrationOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.Outcome
}

// Source returns which store the last hydration resumed from.
func (s *Session) Source() domain.SnapshotSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.Source
}

// Trace returns the steps visited by the last hydration.
func (s *Session) Trace() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.result.Trace...)
}

// Persisted reports whether the current state was written to at least one store.
func (s *Session) Persisted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted
}

// Guest reports whether the session runs under the guest policy.
func (s *Session) Guest() bool {
	return s.guest
}
