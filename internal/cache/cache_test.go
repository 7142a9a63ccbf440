package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, []byte("k1"), []byte("v1")))
	require.NoError(t, store.Put(ctx, []byte("k1"), []byte("v1")))

	value, ok, err := store.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), value)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	exerciseStore(t, store)
	require.Equal(t, 1, store.Len())

	require.NoError(t, store.Close())
	_, _, err := store.Get(context.Background(), []byte("k1"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemory()
	value := []byte("abc")
	require.NoError(t, store.Put(context.Background(), []byte("k"), value))
	value[0] = 'x'

	got, _, err := store.Get(context.Background(), []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestPebbleStore(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenPebble(dir, 8453)
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Close())

	reopened, err := OpenPebble(dir, 8453)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(context.Background(), []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), value)

	other, err := OpenPebble(dir, 1)
	require.NoError(t, err)
	defer other.Close()
	_, ok, err = other.Get(context.Background(), []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok, "chains must not share a cache")
}

func TestTieredServesFromMemory(t *testing.T) {
	remote := NewMemory()
	tiered, err := NewTiered(remote, 2)
	require.NoError(t, err)
	exerciseStore(t, tiered)

	// Drop the remote copy; the LRU still answers.
	require.NoError(t, remote.Close())
	value, ok, err := tiered.Get(context.Background(), []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), value)
}

func TestTieredFallsBackToRemote(t *testing.T) {
	remote := NewMemory()
	require.NoError(t, remote.Put(context.Background(), []byte("warm"), []byte("disk")))

	tiered, err := NewTiered(remote, 0)
	require.NoError(t, err)
	value, ok, err := tiered.Get(context.Background(), []byte("warm"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("disk"), value)
}
