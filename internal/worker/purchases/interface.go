// Package purchases persists the worker's pending purchase queue: purchases
// that failed to reach the store while offline, retried by the one-shot sync
// pass. The worker owns the durable queue; pages only hold snapshots relayed
// to them.
package purchases

import (
	"context"

	"github.com/pr-poehali-dev/game-store-offline/internal/models"
)

// Repository is the durable pending purchase queue, ordered by enqueue time.
type Repository interface {
	// Enqueue adds a record. Re-enqueueing the same local id is a no-op
	// so a page resending its snapshot cannot duplicate the queue.
	Enqueue(ctx context.Context, p models.PendingPurchase) error

	// List returns all queued purchases, oldest first.
	List(ctx context.Context) ([]models.PendingPurchase, error)

	// Remove deletes one record by local id after a successful submission.
	Remove(ctx context.Context, id string) error

	// Count reports the queue length.
	Count(ctx context.Context) (int, error)
}
