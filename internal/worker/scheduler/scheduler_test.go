package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE sync_registrations (
  tag             TEXT PRIMARY KEY,
  min_interval_ms INTEGER NOT NULL,
  last_run        INTEGER NOT NULL DEFAULT 0,
  created_at      INTEGER NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func TestRegistrationDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	never := Registration{Tag: "t", MinInterval: time.Hour}
	assert.True(t, never.Due(now))

	fresh := Registration{Tag: "t", MinInterval: time.Hour, LastRun: now.Add(-30 * time.Minute)}
	assert.False(t, fresh.Due(now))

	stale := Registration{Tag: "t", MinInterval: time.Hour, LastRun: now.Add(-time.Hour)}
	assert.True(t, stale.Due(now))
}

func TestRegisterAndUnregister(t *testing.T) {
	ctx := context.Background()
	s := New(setupDB(t), func(context.Context, string) error { return nil }, logging.NewSlogLogger(nil))

	require.NoError(t, s.Register(ctx, "sync-discounts", 3*time.Hour))
	require.NoError(t, s.Register(ctx, "sync-games-catalog", 12*time.Hour))

	tags, err := s.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync-discounts", "sync-games-catalog"}, tags)

	// Re-registering updates the interval without a duplicate row.
	require.NoError(t, s.Register(ctx, "sync-discounts", 6*time.Hour))
	regs, err := s.Registrations(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, 6*time.Hour, regs[0].MinInterval)

	require.NoError(t, s.Unregister(ctx, "sync-discounts"))
	require.NoError(t, s.Unregister(ctx, "never-registered"))

	tags, err = s.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync-games-catalog"}, tags)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	s := New(setupDB(t), func(context.Context, string) error { return nil }, logging.NewSlogLogger(nil))

	assert.Error(t, s.Register(ctx, "", time.Hour))
	assert.Error(t, s.Register(ctx, "tag", 0))
}

func TestFireDue_RunsAndAdvancesLastRun(t *testing.T) {
	ctx := context.Background()

	var ran []string
	s := New(setupDB(t), func(_ context.Context, tag string) error {
		ran = append(ran, tag)
		return nil
	}, logging.NewSlogLogger(nil))

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Register(ctx, "sync-prices", 6*time.Hour))

	// Never run yet: fires immediately.
	fired, err := s.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync-prices"}, fired)
	assert.Equal(t, []string{"sync-prices"}, ran)

	// Within the interval: quiet.
	now = now.Add(3 * time.Hour)
	fired, err = s.FireDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)

	// Interval elapsed: fires again.
	now = now.Add(3 * time.Hour)
	fired, err = s.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync-prices"}, fired)
	assert.Len(t, ran, 2)
}

func TestFireDue_FailureRetriesNextPoll(t *testing.T) {
	ctx := context.Background()

	calls := 0
	s := New(setupDB(t), func(context.Context, string) error {
		calls++
		if calls == 1 {
			return errors.New("offline")
		}
		return nil
	}, logging.NewSlogLogger(nil))

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Register(ctx, "sync-new-releases", 24*time.Hour))

	fired, err := s.FireDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)

	// Last-run did not advance, so the very next poll retries.
	fired, err = s.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync-new-releases"}, fired)
	assert.Equal(t, 2, calls)
}
