package domain

import "errors"

// Integrity errors: the stored position and the graph disagree. Fatal to the
// current operation and returned to the caller.
var (
	// ErrNodeNotFound is returned when a node id is absent from the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrRuleNotFound is returned when a computed next names an unregistered rule.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleFailed is returned when a computed rule cannot resolve an answer.
	ErrRuleFailed = errors.New("rule failed")
)

// ErrSnapshotNotFound is returned by stores when no snapshot exists for a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrNotHydrated is returned when an answer is submitted before hydration completed.
var ErrNotHydrated = errors.New("session not hydrated")

// ErrSessionBusy is returned when another owner already holds the identity.
var ErrSessionBusy = errors.New("session already open")

// ErrSessionClosed is returned when operating on a released session.
var ErrSessionClosed = errors.New("session closed")

// ErrInvalidSaveStrategy is returned for unknown save strategy names.
var ErrInvalidSaveStrategy = errors.New("invalid save strategy")

// ErrFlowEnded is returned when an answer is submitted at an end node.
var ErrFlowEnded = errors.New("flow already ended")
