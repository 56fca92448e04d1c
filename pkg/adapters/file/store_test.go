package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/chatflow/pkg/adapters/file"
	"github.com/aretw0/chatflow/pkg/ports"
)

// Ensure Store implements LocalStore and KeyLister
var (
	_ ports.LocalStore = (*file.Store)(nil)
	_ ports.KeyLister  = (*file.Store)(nil)
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunLocalStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set("default:alice:s1", `{"currentStep":"q2"}`))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".kv", filepath.Ext(entries[0].Name()))
}

func TestFileStore_MissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "not", "yet"))

	_, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, store.Set("k", "v"))
	got, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestFileStore_EmptyKey(t *testing.T) {
	store := file.New(t.TempDir())
	assert.Error(t, store.Set("", "v"))
	_, _, err := store.Get("")
	assert.Error(t, err)
}
