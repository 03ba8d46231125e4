package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataStore_RoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-meta-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	store := NewMetadataStore(tmpDir)
	store.Update("expenses/expenses.csv", "2026-08-31T10:00:00Z", "localhash", "remotehash", "2026-08-31T09:59:58Z")
	require.NoError(t, store.Save())

	reloaded := NewMetadataStore(tmpDir)
	meta, ok := reloaded.Get("expenses/expenses.csv")
	require.True(t, ok)
	assert.Equal(t, "localhash", meta.LocalHash)
	assert.Equal(t, "remotehash", meta.RemoteHash)
	assert.Equal(t, 1, meta.SyncCount)
}

func TestMetadataStore_SyncCountIncrements(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-meta-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	store := NewMetadataStore(tmpDir)
	for i := 0; i < 3; i++ {
		store.Update("habits/habits.csv", "", "h", "r", "")
	}

	meta, _ := store.Get("habits/habits.csv")
	assert.Equal(t, 3, meta.SyncCount)
}

func TestMetadataStore_ToleratesMissingAndCorruptFiles(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-meta-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	t.Run("missing file starts empty", func(t *testing.T) {
		store := NewMetadataStore(tmpDir)
		assert.Empty(t, store.Keys())
	})

	t.Run("corrupt file starts empty", func(t *testing.T) {
		path := filepath.Join(tmpDir, MetadataFileName)
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		store := NewMetadataStore(tmpDir)
		assert.Empty(t, store.Keys())

		// A save replaces the corrupt file with valid state.
		store.Update("k", "", "h", "r", "")
		require.NoError(t, store.Save())

		_, ok := NewMetadataStore(tmpDir).Get("k")
		assert.True(t, ok)
	})
}

func TestMetadataStore_GetReturnsMissingAsFalse(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-meta-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	store := NewMetadataStore(tmpDir)
	_, ok := store.Get("never/seen.csv")
	assert.False(t, ok)
}
