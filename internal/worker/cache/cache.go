// Package cache implements the worker's named cache partitions over the
// local sqlite database.
//
// A partition maps a GET request URL to a stored response. Three partitions
// exist at any one version: the precache bootstrap set, the runtime asset
// cache, and the bounded image cache. Rows carry a monotonically increasing
// sequence so eviction can drop the oldest-inserted entries first; refreshing
// an existing URL overwrites the stored response in place and keeps its
// insertion position (FIFO, not LRU).
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/common"
	"github.com/pr-poehali-dev/game-store-offline/internal/dbx"
)

// Entry is one stored response. The body is always a private copy; callers
// may consume their original response freely after a Put.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	CachedAt time.Time
}

// Age reports how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// Manager owns every partition in one worker database.
type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Open returns a handle to the named partition. Partitions come into
// existence lazily on first Put, so Open never touches the database and is
// trivially idempotent.
func (m *Manager) Open(name string) *Partition {
	return &Partition{db: m.db, name: name}
}

// Names lists every partition that currently holds at least one entry.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT DISTINCT partition FROM cache_entries ORDER BY partition`)
	if err != nil {
		return nil, fmt.Errorf("listing partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// PurgeObsolete deletes every partition whose name is not in current and
// returns the names it removed. Invoked once per activation.
func (m *Manager) PurgeObsolete(ctx context.Context, current []string) ([]string, error) {
	keep := make(map[string]struct{}, len(current))
	for _, n := range current {
		keep[n] = struct{}{}
	}

	names, err := m.Names(ctx)
	if err != nil {
		return nil, err
	}

	var purged []string
	for _, n := range names {
		if _, ok := keep[n]; ok {
			continue
		}
		if err := m.Delete(ctx, n); err != nil {
			return purged, err
		}
		purged = append(purged, n)
	}
	return purged, nil
}

// Delete removes one partition and all of its entries.
func (m *Manager) Delete(ctx context.Context, name string) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE partition = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting partition %s: %w", name, err)
	}
	return nil
}

// DeleteAll wipes every partition unconditionally, regardless of version.
// Backs the page's manual clear-cache command.
func (m *Manager) DeleteAll(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return fmt.Errorf("clearing caches: %w", err)
	}
	return nil
}

// Partition is a handle to one named cache partition.
type Partition struct {
	db   *sql.DB
	name string
}

func (p *Partition) Name() string { return p.name }

// Match looks up the stored response for a URL. Misses return
// common.ErrNotFound.
func (p *Partition) Match(ctx context.Context, url string) (*Entry, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT status, headers, body, cached_at FROM cache_entries
		 WHERE partition = ? AND url = ?`, p.name, url)

	var (
		e        Entry
		headers  string
		cachedAt int64
	)
	if err := row.Scan(&e.Status, &headers, &e.Body, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("matching %s in %s: %w", url, p.name, err)
	}

	if err := json.Unmarshal([]byte(headers), &e.Header); err != nil {
		return nil, fmt.Errorf("decoding stored headers: %w", err)
	}
	e.CachedAt = time.UnixMilli(cachedAt).UTC()
	return &e, nil
}

// Put stores a response copy under the URL. An existing entry for the same
// URL is overwritten in place and keeps its original insertion sequence.
func (p *Partition) Put(ctx context.Context, url string, e *Entry) error {
	headers, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encoding headers: %w", err)
	}

	cachedAt := e.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now().UTC()
	}

	body := make([]byte, len(e.Body))
	copy(body, e.Body)

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO cache_entries (partition, url, status, headers, body, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (partition, url) DO UPDATE SET
			status = excluded.status,
			headers = excluded.headers,
			body = excluded.body,
			cached_at = excluded.cached_at`,
		p.name, url, e.Status, string(headers), body, cachedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("storing %s in %s: %w", url, p.name, err)
	}
	return nil
}

// Keys lists the partition's URLs in insertion order, oldest first.
func (p *Partition) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT url FROM cache_entries WHERE partition = ? ORDER BY seq`, p.name)
	if err != nil {
		return nil, fmt.Errorf("listing keys of %s: %w", p.name, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		keys = append(keys, u)
	}
	return keys, rows.Err()
}

// Count reports the number of entries in the partition.
func (p *Partition) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE partition = ?`, p.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", p.name, err)
	}
	return n, nil
}

// EnforceCap deletes the oldest-inserted entries until at most max remain and
// reports how many it evicted. Count and delete run in one transaction so a
// concurrent Put cannot slip between them.
func (p *Partition) EnforceCap(ctx context.Context, max int) (int, error) {
	var evicted int64
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cache_entries WHERE partition = ?`, p.name).Scan(&n)
		if err != nil {
			return err
		}
		if n <= max {
			return nil
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM cache_entries WHERE partition = ? AND seq IN (
				SELECT seq FROM cache_entries WHERE partition = ?
				ORDER BY seq LIMIT ?
			)`, p.name, p.name, n-max)
		if err != nil {
			return err
		}
		evicted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("evicting from %s: %w", p.name, err)
	}
	return int(evicted), nil
}
