package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pr-poehali-dev/game-store-offline/internal/dbx"
)

// SQLiteStore implements Store over a two-column key-value table.
type SQLiteStore struct {
	db    dbx.DBTX
	table string
}

// NewSQLiteStore binds the store to a table with (key TEXT PRIMARY KEY,
// value TEXT) columns. The table name comes from our own migrations, never
// from user input.
func NewSQLiteStore(db dbx.DBTX, table string) *SQLiteStore {
	return &SQLiteStore{db: db, table: table}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, s.table)
	var v string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
