package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "parrot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBindAndIsBound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, "guild1", "voice1", "text1"))

	for _, channel := range []string{"voice1", "text1"} {
		bound, err := store.IsBound(ctx, channel)
		require.NoError(t, err)
		assert.True(t, bound, channel)
	}

	bound, err := store.IsBound(ctx, "unrelated")
	require.NoError(t, err)
	assert.False(t, bound)
}

func TestBindReplacesExistingBinding(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, "guild1", "voice1", "text1"))
	require.NoError(t, store.Bind(ctx, "guild1", "voice2", "text2"))

	bound, err := store.IsBound(ctx, "voice1")
	require.NoError(t, err)
	assert.False(t, bound, "old voice channel should be unbound")

	bound, err = store.IsBound(ctx, "voice2")
	require.NoError(t, err)
	assert.True(t, bound)
}

func TestUnbindMatchesEitherChannel(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, "guild1", "voice1", "text1"))
	require.NoError(t, store.Unbind(ctx, "guild1", "text1"))

	bound, err := store.IsBound(ctx, "voice1")
	require.NoError(t, err)
	assert.False(t, bound)

	require.NoError(t, store.Bind(ctx, "guild1", "voice1", "text1"))
	require.NoError(t, store.Unbind(ctx, "guild1", "voice1"))

	bound, err = store.IsBound(ctx, "text1")
	require.NoError(t, err)
	assert.False(t, bound)
}

func TestUnbindIgnoresOtherGuilds(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, "guild1", "voice1", "text1"))
	require.NoError(t, store.Unbind(ctx, "guild2", "voice1"))

	bound, err := store.IsBound(ctx, "voice1")
	require.NoError(t, err)
	assert.True(t, bound)
}

func TestPurgeAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, "guild1", "voice1", "text1"))
	require.NoError(t, store.Bind(ctx, "guild2", "voice2", "text2"))
	require.NoError(t, store.PurgeAll(ctx))

	for _, channel := range []string{"voice1", "text1", "voice2", "text2"} {
		bound, err := store.IsBound(ctx, channel)
		require.NoError(t, err)
		assert.False(t, bound, channel)
	}
}
