package cache

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/game-store-offline/internal/common"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE cache_entries (
  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
  partition  TEXT NOT NULL,
  url        TEXT NOT NULL,
  status     INTEGER NOT NULL,
  headers    TEXT NOT NULL,
  body       BLOB NOT NULL,
  cached_at  INTEGER NOT NULL,
  UNIQUE (partition, url)
);
`)
	require.NoError(t, err)
	return db
}

func entry(body string) *Entry {
	return &Entry{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": {"text/plain"}},
		Body:     []byte(body),
		CachedAt: time.Now().UTC(),
	}
}

func TestPutAndMatch(t *testing.T) {
	ctx := context.Background()
	m := NewManager(setupDB(t))
	p := m.Open("runtime-v1")

	require.NoError(t, p.Put(ctx, "/app.js", entry("console.log(1)")))

	got, err := p.Match(ctx, "/app.js")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "text/plain", got.Header.Get("Content-Type"))
	assert.Equal(t, []byte("console.log(1)"), got.Body)
	assert.WithinDuration(t, time.Now(), got.CachedAt, 5*time.Second)
}

func TestMatch_Miss(t *testing.T) {
	ctx := context.Background()
	p := NewManager(setupDB(t)).Open("runtime-v1")

	_, err := p.Match(ctx, "/missing.js")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPut_OverwriteKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	p := NewManager(setupDB(t)).Open("images-v1")

	require.NoError(t, p.Put(ctx, "/a.png", entry("a1")))
	require.NoError(t, p.Put(ctx, "/b.png", entry("b1")))
	require.NoError(t, p.Put(ctx, "/a.png", entry("a2")))

	keys, err := p.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png", "/b.png"}, keys)

	got, err := p.Match(ctx, "/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("a2"), got.Body)
}

func TestPut_BodyIsCopied(t *testing.T) {
	ctx := context.Background()
	p := NewManager(setupDB(t)).Open("images-v1")

	body := []byte("original")
	e := entry("")
	e.Body = body
	require.NoError(t, p.Put(ctx, "/x.png", e))

	copy(body, "mutated!")

	got, err := p.Match(ctx, "/x.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got.Body)
}

func TestEnforceCap_FIFO(t *testing.T) {
	ctx := context.Background()
	p := NewManager(setupDB(t)).Open("images-v1")

	// 55 inserts against a cap of 50 must leave the 50 newest.
	for i := 0; i < 55; i++ {
		require.NoError(t, p.Put(ctx, fmt.Sprintf("/img-%02d.png", i), entry("x")))
	}

	evicted, err := p.EnforceCap(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, evicted)

	keys, err := p.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 50)
	assert.Equal(t, "/img-05.png", keys[0])
	assert.Equal(t, "/img-54.png", keys[49])

	// Under the cap the pass is a no-op.
	evicted, err = p.EnforceCap(ctx, 50)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestPurgeObsolete_VersionRollover(t *testing.T) {
	ctx := context.Background()
	m := NewManager(setupDB(t))

	for _, name := range []string{"precache-v1", "runtime-v1", "images-v1", "precache-v2", "runtime-v2", "images-v2"} {
		require.NoError(t, m.Open(name).Put(ctx, "/", entry(name)))
	}

	purged, err := m.PurgeObsolete(ctx, []string{"precache-v2", "runtime-v2", "images-v2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"precache-v1", "runtime-v1", "images-v1"}, purged)

	names, err := m.Names(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"precache-v2", "runtime-v2", "images-v2"}, names)

	// The surviving set is untouched.
	got, err := m.Open("precache-v2").Match(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []byte("precache-v2"), got.Body)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	m := NewManager(setupDB(t))

	require.NoError(t, m.Open("precache-v1").Put(ctx, "/", entry("x")))
	require.NoError(t, m.Open("images-v1").Put(ctx, "/a.png", entry("y")))

	require.NoError(t, m.DeleteAll(ctx))

	names, err := m.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}
