package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/dbx"
	"github.com/pr-poehali-dev/game-store-offline/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, p models.PendingPurchase) error {
	query := `INSERT INTO pending_purchases
			(id, game_id, game_name, amount, user_id, payment_method, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.GameID, p.GameName, p.Amount, p.UserID, p.PaymentMethod, p.QueuedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to enqueue purchase: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.PendingPurchase, error) {
	query := `SELECT id, game_id, game_name, amount, user_id, payment_method, queued_at
		FROM pending_purchases ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending purchases: %w", err)
	}
	defer rows.Close()

	var result []models.PendingPurchase
	for rows.Next() {
		var (
			p        models.PendingPurchase
			queuedAt int64
		)
		if err := rows.Scan(&p.ID, &p.GameID, &p.GameName, &p.Amount, &p.UserID, &p.PaymentMethod, &queuedAt); err != nil {
			return nil, err
		}
		p.QueuedAt = time.UnixMilli(queuedAt).UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_purchases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove purchase %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_purchases`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending purchases: %w", err)
	}
	return n, nil
}
