package status

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE sync_status (key TEXT PRIMARY KEY, value TEXT NOT NULL);`)
	require.NoError(t, err)
	return db
}

func TestSQLiteStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(setupDB(t), "sync_status")

	v, err := s.Get(ctx, KeyGamesCache)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, KeyGamesCache, `[{"id":1}]`))
	require.NoError(t, s.Set(ctx, KeyGamesCache, `[{"id":2}]`))

	v, err = s.Get(ctx, KeyGamesCache)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2}]`, v)
}

func TestTimestampHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ms, err := Timestamp(ctx, s, KeyPriceSyncTimestamp)
	require.NoError(t, err)
	assert.Zero(t, ms)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, SetTimestamp(ctx, s, KeyPriceSyncTimestamp, now))

	ms, err = Timestamp(ctx, s, KeyPriceSyncTimestamp)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), ms)

	// Garbage reads as zero rather than an error.
	require.NoError(t, s.Set(ctx, "bad", "not-a-number"))
	ms, err = Timestamp(ctx, s, "bad")
	require.NoError(t, err)
	assert.Zero(t, ms)
}
