// Package storage opens the page's local sqlite database. Pages keep only a
// key-value snapshot here; durable queues live with the worker.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/pr-poehali-dev/game-store-offline/internal/page/migrations"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
)

// StateTable is the key-value table backing the page's status store.
const StateTable = "page_state"

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens and migrates the page database.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewStore binds a status store to the page database.
func NewStore(db *sql.DB) status.Store {
	return status.NewSQLiteStore(db, StateTable)
}
