package domain

import (
	"fmt"
	"strings"
)

// SaveStrategy controls which transitions are persisted.
type SaveStrategy string

const (
	// SaveAlways persists after every applied answer.
	SaveAlways SaveStrategy = "always"
	// SaveOnEndOnly persists only when the destination node is an end node.
	SaveOnEndOnly SaveStrategy = "on-end-only"
)

// ParseSaveStrategy validates a strategy name. Empty selects SaveAlways.
func ParseSaveStrategy(s string) (SaveStrategy, error) {
	switch SaveStrategy(strings.TrimSpace(strings.ToLower(s))) {
	case "", SaveAlways:
		return SaveAlways, nil
	case SaveOnEndOnly:
		return SaveOnEndOnly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSaveStrategy, s)
	}
}

// HydrationOutcome is the terminal state reached by the load path.
type HydrationOutcome string

const (
	// LoadedFresh means no usable snapshot existed.
	LoadedFresh HydrationOutcome = "loaded-fresh"
	// LoadedReconciled means a stored snapshot was resumed.
	LoadedReconciled HydrationOutcome = "loaded-reconciled"
	// LoadedCleared means stored state was stale and discarded.
	LoadedCleared HydrationOutcome = "loaded-cleared"
)

// SnapshotSource names the store a resumed snapshot came from.
type SnapshotSource string

const (
	SourceNone   SnapshotSource = "none"
	SourceLocal  SnapshotSource = "local"
	SourceRemote SnapshotSource = "remote"
)
