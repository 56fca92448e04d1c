package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventHydrated   EventType = "hydrated"
	EventTransition EventType = "transition"
	EventPersisted  EventType = "persisted"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Identity  Identity  `json:"identity"`
}

// HydrationEvent is emitted once the load path reaches a terminal state.
type HydrationEvent struct {
	EventBase
	Outcome     HydrationOutcome `json:"outcome"`
	Source      SnapshotSource   `json:"source"`
	CurrentStep string           `json:"current_step"`
}

// TransitionEvent is emitted after an answer moved the session.
type TransitionEvent struct {
	EventBase
	FromNodeID string `json:"from_node_id"`
	ToNodeID   string `json:"to_node_id"`
	Answer     any    `json:"answer,omitempty"`
	IsEnd      bool   `json:"is_end,omitempty"`
}

// PersistEvent reports which stores a transition was written to.
type PersistEvent struct {
	EventBase
	LocalAttempted  bool  `json:"local_attempted"`
	LocalErr        error `json:"-"`
	RemoteAttempted bool  `json:"remote_attempted"`
	RemoteErr       error `json:"-"`
}

// LifecycleHooks defines callbacks for session observability.
type LifecycleHooks struct {
	OnHydrated   func(context.Context, *HydrationEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnPersisted  func(context.Context, *PersistEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnHydrated:   chain(h.OnHydrated, other.OnHydrated),
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnPersisted:  chain(h.OnPersisted, other.OnPersisted),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
