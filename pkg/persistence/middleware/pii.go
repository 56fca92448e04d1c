package middleware

import (
	"context"
	"errors"
	"regexp"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// Mask replaces sensitive values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RemoteStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks answers before they leave
// the device. A node id matching any pattern has its answer and message
// masked; nested answer keys matching a pattern are masked too.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.RemoteStore) ports.RemoteStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	// Clone to avoid side effects on the session's in-memory state.
	cloned := state.Clone()

	for id, v := range cloned.Answers {
		cloned.Answers[id] = m.mask(id, v)
	}
	for i, msg := range cloned.Messages {
		cloned.Messages[i].Answer = m.mask(msg.NodeID, msg.Answer)
	}

	return m.next.SaveState(ctx, userID, cloned)
}

func (m *piiMiddleware) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	return m.next.LoadState(ctx, userID)
}

func (m *piiMiddleware) DeleteState(ctx context.Context, userID string) error {
	if d, ok := m.next.(ports.RemoteDeleter); ok {
		return d.DeleteState(ctx, userID)
	}
	return errors.ErrUnsupported
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) mask(key string, v any) any {
	if m.matches(key) {
		return Mask
	}
	if sub, ok := v.(map[string]any); ok {
		m.maskMap(sub)
	}
	return v
}

func (m *piiMiddleware) maskMap(values map[string]any) {
	for k, v := range values {
		values[k] = m.mask(k, v)
	}
}
