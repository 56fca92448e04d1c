package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
)

// internalPrefix marks identity bookkeeping keys rather than snapshots.
const internalPrefix = "chatflow:"

// ListSessions returns the state keys held in the device store.
func ListSessions(store LocalStore, scenario string) ([]string, error) {
	prefix := ""
	if scenario != "" {
		prefix = scenario + ":"
	}
	keys, err := store.Keys(prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if !strings.HasPrefix(k, internalPrefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// InspectSession returns the snapshot stored under key, pretty printed.
func InspectSession(store LocalStore, key string) (string, error) {
	raw, ok, err := store.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("session %q: %w", key, domain.ErrSnapshotNotFound)
	}
	state, err := domain.DecodeState(raw)
	if err != nil {
		return "", fmt.Errorf("session %q: %w", key, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RemoveSession deletes the snapshot stored under key.
func RemoveSession(store LocalStore, key string) error {
	_, ok, err := store.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %q: %w", key, domain.ErrSnapshotNotFound)
	}
	return store.Remove(key)
}
