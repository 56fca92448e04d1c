// Package identity resolves which (user, scenario, session) triple is active.
//
// Anonymous user ids and the last-session pointer live in the local store, so
// resolution is idempotent for as long as that store persists.
package identity

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// AnonymousUserKey is the local key holding the minted anonymous user id.
const AnonymousUserKey = "chatflow:anonymous-user"

const lastSessionPrefix = "chatflow:last-session:"

var guestPrefixes = []string{"guest_", "guest-", "anon_", "anon-"}

// LastSessionKey is the local key of the last-session pointer for a scenario and user.
func LastSessionKey(scenarioID, userID string) string {
	return lastSessionPrefix + scenarioID + ":" + userID
}

// IsGuest reports whether userID looks machine-minted rather than supplied by
// an authenticated host: a UUIDv4, or one of the guest prefixes.
func IsGuest(userID string) bool {
	if userID == "" {
		return true
	}
	for _, p := range guestPrefixes {
		if strings.HasPrefix(userID, p) {
			return true
		}
	}
	if len(userID) != 36 {
		return false
	}
	id, err := uuid.Parse(userID)
	return err == nil && id.Version() == 4
}

// Resolver resolves identities against a local store. Safe for concurrent use.
type Resolver struct {
	// mu makes each read-then-write on the local store atomic.
	mu     sync.Mutex
	local  ports.LocalStore
	logger *slog.Logger
	newID  func() string
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger configures a logger for the Resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithIDGenerator replaces the UUIDv4 generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(r *Resolver) {
		r.newID = fn
	}
}

// NewResolver creates a resolver backed by local.
func NewResolver(local ports.LocalStore, opts ...Option) *Resolver {
	r := &Resolver{
		local:  local,
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UserID returns supplied verbatim when non-empty, otherwise the persisted
// anonymous id, minting and recording one on first use.
func (r *Resolver) UserID(supplied string) string {
	if supplied != "" {
		return supplied
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.read(AnonymousUserKey); ok && id != "" {
		return id
	}

	id := r.newID()
	r.write(AnonymousUserKey, id)
	return id
}

// SessionID resolves the session for scenarioID and userID and records it as
// the last session. New always mints; a pinned id is used as is; auto resumes
// the last recorded session or mints one.
func (r *Resolver) SessionID(scenarioID, userID string, req domain.SessionRequest) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.sessionID(scenarioID, userID, req)
	r.write(LastSessionKey(scenarioID, userID), id)
	return id
}

func (r *Resolver) sessionID(scenarioID, userID string, req domain.SessionRequest) string {
	if pinned, ok := req.Pinned(); ok {
		return pinned
	}
	if req.IsAuto() {
		if id, ok := r.read(LastSessionKey(scenarioID, userID)); ok && id != "" {
			return id
		}
	}
	return r.newID()
}

// Peek builds the full identity without recording the last-session pointer.
// Callers record it with Point once the session is actually in use.
// An empty scenario selects domain.DefaultScenario.
func (r *Resolver) Peek(userID, scenarioID string, req domain.SessionRequest) domain.Identity {
	if scenarioID == "" {
		scenarioID = domain.DefaultScenario
	}
	user := r.UserID(userID)

	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Identity{
		UserID:     user,
		ScenarioID: scenarioID,
		SessionID:  r.sessionID(scenarioID, user, req),
	}
}

// Resolve is Peek followed by Point.
func (r *Resolver) Resolve(userID, scenarioID string, req domain.SessionRequest) domain.Identity {
	id := r.Peek(userID, scenarioID, req)
	r.Point(id.ScenarioID, id.UserID, id.SessionID)
	return id
}

// Point records sessionID as the last session.
func (r *Resolver) Point(scenarioID, userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write(LastSessionKey(scenarioID, userID), sessionID)
}

// NewSessionID mints a fresh session id.
func (r *Resolver) NewSessionID() string {
	return r.newID()
}

func (r *Resolver) read(key string) (string, bool) {
	v, ok, err := r.local.Get(key)
	if err != nil {
		r.logger.Warn("failed to read identity key", "key", key, "err", err)
		return "", false
	}
	return v, ok
}

func (r *Resolver) write(key, value string) {
	if err := r.local.Set(key, value); err != nil {
		r.logger.Warn("failed to persist identity key", "key", key, "err", err)
	}
}
