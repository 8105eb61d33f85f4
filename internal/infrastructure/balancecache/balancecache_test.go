package balancecache

import (
	"context"
	"path/filepath"
	"testing"

	"balance_pool/internal/config"
	"balance_pool/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() []entity.CachedBalance {
	return []entity.CachedBalance{
		{Source: "evm-native", Network: "evm:1", TokenID: "1-evm-native", Address: "0x1111111111111111111111111111111111111111", Free: "1000000000000000000"},
		{Source: "substrate-native", Network: "chain:polkadot", TokenID: "polkadot-substrate-native", Address: "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5", Free: "5", Reserved: "2", Frozen: "1"},
	}
}

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	sqliteStore, err := Open(ctx, config.BalanceCacheConfig{Backend: "sqlite", Path: filepath.Join(dir, "db", "balances.db")})
	require.NoError(t, err)
	walStore, err := Open(ctx, config.BalanceCacheConfig{Backend: "wal", Path: filepath.Join(dir, "wal")})
	require.NoError(t, err)
	memStore, err := Open(ctx, config.BalanceCacheConfig{Backend: "memory"})
	require.NoError(t, err)

	stores := map[string]Store{"sqlite": sqliteStore, "wal": walStore, "memory": memStore}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStores(t *testing.T) {
	for name, store := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.Retrieve(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, store.Persist(ctx, snapshot()))
			got, err := store.Retrieve(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, snapshot(), got)

			// A persist replaces the whole snapshot.
			require.NoError(t, store.Persist(ctx, snapshot()[:1]))
			got, err = store.Retrieve(ctx)
			require.NoError(t, err)
			assert.Equal(t, snapshot()[:1], got)

			require.NoError(t, store.Persist(ctx, nil))
			got, err = store.Retrieve(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "balances.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, snapshot()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Retrieve(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, snapshot(), got)
}

func TestWALStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenWAL(dir, 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, snapshot()))
	require.NoError(t, s.Persist(ctx, snapshot()[1:]))
	require.NoError(t, s.Close())

	s, err = OpenWAL(dir, 0, 0)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot()[1:], got)
}

func TestWALStore_LatestSnapshotWins(t *testing.T) {
	ctx := context.Background()
	s, err := OpenWAL(t.TempDir(), 0, 0)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Retrieve(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "empty log")

	require.NoError(t, s.Persist(ctx, snapshot()))
	got, err = s.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot(), got)

	require.NoError(t, s.Persist(ctx, nil))
	got, err = s.Retrieve(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "an empty snapshot replaces the previous one")
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.BalanceCacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(context.Background(), config.BalanceCacheConfig{Backend: "redis"})
	assert.Error(t, err)
}
