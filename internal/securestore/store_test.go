package securestore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonsigner/tonsigner/internal/testutil"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenDSN(":memory:", bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a value", func(t *testing.T) {
		s := newMemoryStore(t)
		require.NoError(t, s.SetItem(ctx, "proof-main", "token-1"))

		got, err := s.GetItem(ctx, "proof-main")
		require.NoError(t, err)
		assert.Equal(t, "token-1", got)
	})

	t.Run("overwrites existing value", func(t *testing.T) {
		s := newMemoryStore(t)
		require.NoError(t, s.SetItem(ctx, "k", "v1"))
		require.NoError(t, s.SetItem(ctx, "k", "v2"))

		got, err := s.GetItem(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", got)
	})

	t.Run("missing key returns ErrNotFound", func(t *testing.T) {
		s := newMemoryStore(t)
		_, err := s.GetItem(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete removes the value and is idempotent", func(t *testing.T) {
		s := newMemoryStore(t)
		require.NoError(t, s.SetItem(ctx, "k", "v"))
		require.NoError(t, s.DeleteItem(ctx, "k"))
		require.NoError(t, s.DeleteItem(ctx, "k"))

		_, err := s.GetItem(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		s := newMemoryStore(t)
		assert.ErrorIs(t, s.SetItem(ctx, "", "v"), ErrEmptyKey)
		_, err := s.GetItem(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("nil store is reported", func(t *testing.T) {
		var s *Store
		assert.ErrorIs(t, s.SetItem(ctx, "k", "v"), ErrNotInitialized)
		assert.NoError(t, s.Close())
	})
}

func TestStore_SealedValueBoundToKey(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	require.NoError(t, s.SetItem(ctx, "proof-a", "secret"))

	// Copy the sealed row under another key; it must not open.
	_, err := s.db.Exec(`INSERT INTO secure_items (item_key, sealed) SELECT 'proof-b', sealed FROM secure_items WHERE item_key = 'proof-a'`)
	require.NoError(t, err)

	_, err = s.GetItem(ctx, "proof-b")
	assert.ErrorIs(t, err, ErrCorruptItem)
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	require.NoError(t, s.SetItem(ctx, "wallet-b", "1"))
	require.NoError(t, s.SetItem(ctx, "wallet-a", "2"))
	require.NoError(t, s.SetItem(ctx, "proof-a", "3"))
	require.NoError(t, s.SetItem(ctx, "wallet_%", "4"))

	keys, err := s.Keys(ctx, "wallet-")
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet-a", "wallet-b"}, keys)
}

func TestOpen_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := testutil.TempDir(t)

	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.SetItem(ctx, "proof-main", "tok"))
	require.NoError(t, s1.Close())

	info, err := os.Stat(filepath.Join(dir, masterKeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetItem(ctx, "proof-main")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}

func TestLoadOrCreateMasterKey_RejectsBadLength(t *testing.T) {
	dir := testutil.TempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, masterKeyFileName), []byte("short"), 0600))

	_, err := LoadOrCreateMasterKey(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid length")
}
