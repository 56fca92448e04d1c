package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lease survives a crashed owner.
const DefaultLockTTL = 30 * time.Second

// DefaultLockWait is how long Open waits for a distributed lock before reporting busy.
const DefaultLockWait = 2 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lease is an open session plus the distributed lock backing it, if any.
type lease struct {
	session *Session
	unlock  ports.UnlockFunc
}

// Manager hands out exclusive sessions, one per identity state key.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	deps Deps
	opts []Option

	mu     sync.Mutex            // Global lock for the maps
	locks  map[string]*lockEntry // Per-key locks serializing open, close and rekey
	leases map[string]*lease     // Currently open sessions

	locker   ports.DistributedLocker // Optional distributed locker
	lockTTL  time.Duration
	lockWait time.Duration
	logger   *slog.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLockWait bounds how long Open waits for a distributed lock held elsewhere.
func WithLockWait(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.lockWait = d
		}
	}
}

// WithManagerLogger configures a logger for the Manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSessionOptions sets options applied to every session the Manager opens.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.opts = append(m.opts, opts...)
	}
}

// NewManager creates a new Session Manager sharing deps across sessions.
func NewManager(deps Deps, opts ...ManagerOption) *Manager {
	m := &Manager{
		deps:     deps,
		locks:    make(map[string]*lockEntry),
		leases:   make(map[string]*lease),
		lockTTL:  DefaultLockTTL,
		lockWait: DefaultLockWait,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock executes fn while holding the in-process lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()
	return fn(ctx)
}

// Open creates and hydrates the session for cfg.Identity.
// It returns domain.ErrSessionBusy while another session holds the same key.
func (m *Manager) Open(ctx context.Context, cfg Config) (*Session, error) {
	key := cfg.Identity.StateKey()

	var s *Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		candidate := New(m.deps, cfg, m.opts...)
		candidate.rekey = m.rekey
		candidate.onClose = func() { m.closeSession(candidate) }

		if err := m.claim(ctx, key, candidate); err != nil {
			return err
		}
		s = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.Hydrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// claim registers s under key, taking the distributed lock if configured.
// The caller holds the per-key lock.
func (m *Manager) claim(ctx context.Context, key string, s *Session) error {
	m.mu.Lock()
	_, busy := m.leases[key]
	m.mu.Unlock()
	if busy {
		return fmt.Errorf("%s: %w", key, domain.ErrSessionBusy)
	}

	l := &lease{session: s}
	if m.locker != nil {
		lctx, cancel := context.WithTimeout(ctx, m.lockWait)
		unlock, err := m.locker.Lock(lctx, key, m.lockTTL)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w: %v", key, domain.ErrSessionBusy, err)
		}
		l.unlock = unlock
	}

	m.mu.Lock()
	m.leases[key] = l
	m.mu.Unlock()
	return nil
}

// drop removes the lease for key and releases its distributed lock.
// The caller holds the per-key lock.
func (m *Manager) drop(ctx context.Context, key string) {
	m.mu.Lock()
	l, ok := m.leases[key]
	delete(m.leases, key)
	m.mu.Unlock()

	if !ok || l.unlock == nil {
		return
	}
	if err := l.unlock(ctx); err != nil {
		m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
			"key", key,
			"err", err,
		)
	}
}

// rekey moves a lease when a session resets onto another session id.
func (m *Manager) rekey(from, to domain.Identity) error {
	ctx := context.Background()
	oldKey, newKey := from.StateKey(), to.StateKey()

	return m.WithLock(ctx, newKey, func(ctx context.Context) error {
		m.mu.Lock()
		old, ok := m.leases[oldKey]
		m.mu.Unlock()

		var s *Session
		if ok {
			s = old.session
		}
		if err := m.claim(ctx, newKey, s); err != nil {
			return err
		}
		return m.WithLock(ctx, oldKey, func(ctx context.Context) error {
			m.drop(ctx, oldKey)
			return nil
		})
	})
}

func (m *Manager) closeSession(s *Session) {
	key := s.Identity().StateKey()
	_ = m.WithLock(context.Background(), key, func(ctx context.Context) error {
		m.drop(ctx, key)
		return nil
	})
}

// Get returns the open session for key.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[key]
	if !ok || l.session == nil {
		return nil, false
	}
	return l.session, true
}

// Keys lists the state keys of open sessions.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.leases))
	for k := range m.leases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloseAll closes every open session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.leases))
	for _, l := range m.leases {
		if l.session != nil {
			open = append(open, l.session)
		}
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

// LockCount reports how many per-key locks are alive.
func (m *Manager) LockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
