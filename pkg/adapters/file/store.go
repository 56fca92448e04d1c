// Package file implements a local store on the filesystem, one file per key.
package file

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const ext = ".kv"

// Store implements ports.LocalStore using the local filesystem.
// Keys are escaped into file names, so any key is accepted.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".chatflow/store".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".chatflow", "store")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.BasePath, url.QueryEscape(key)+ext)
}

// Get reads the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key cannot be empty")
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read key file: %w", err)
	}
	return string(data), true, nil
}

// Set writes value under key atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure store directory: %w", err)
	}

	// Same directory as the destination, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.WriteString(value); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := s.path(key)
	if _, err := os.Stat(dest); err == nil {
		// On Windows, os.Rename fails if dest exists.
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing key file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Remove deletes the key file.
func (s *Store) Remove(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// Keys returns the sorted keys that start with prefix.
func (s *Store) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
