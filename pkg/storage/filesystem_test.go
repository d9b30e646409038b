package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(filepath.Join("proofs", "enr-1-receipt.pdf"), []byte("%PDF-1.4"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.baseDir, name))
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), data)
}

func TestLocalStorageSaveRejectsEscapingPaths(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	_, err = store.Save(filepath.Join("..", "outside.pdf"), []byte("x"))
	require.Error(t, err)

	_, err = store.Save(filepath.Join("proofs", "..", "..", "outside.pdf"), []byte("x"))
	require.Error(t, err)

	_, err = store.Save(filepath.Join(base, "absolute.pdf"), []byte("x"))
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(filepath.Dir(base), "outside.pdf"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("proofs/old.pdf", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("proofs/fresh.pdf", []byte("fresh"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.baseDir, "proofs", "old.pdf"), stale, stale))

	removed, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join("proofs", "old.pdf")}, removed)

	_, err = os.Stat(filepath.Join(store.baseDir, "proofs", "fresh.pdf"))
	require.NoError(t, err)
}
