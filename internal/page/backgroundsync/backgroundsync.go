// Package backgroundsync is the page's side of purchase retry: failed
// purchases are handed to the worker's durable queue and a sync pass is
// requested whenever connectivity returns.
package backgroundsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/models"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/workerclient"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
	"github.com/pr-poehali-dev/game-store-offline/internal/storeapi"
)

// Tag is the one-shot sync tag requested after queueing.
const Tag = "sync-purchases"

// Service owns the page's purchase flow.
type Service struct {
	api   *storeapi.Client
	wc    *workerclient.Client
	store status.Store
	log   logging.Logger
}

func NewService(api *storeapi.Client, wc *workerclient.Client, store status.Store, log logging.Logger) *Service {
	return &Service{
		api:   api,
		wc:    wc,
		store: store,
		log:   log.With("module", "backgroundsync"),
	}
}

// Purchase tries to buy the game directly. When the store cannot be reached
// the purchase is queued with the worker and retried by the next sync pass;
// the returned record is non-nil exactly in that queued case.
func (s *Service) Purchase(ctx context.Context, game models.Game) (*models.PendingPurchase, error) {
	p := models.NewPendingPurchase(game.ID, game.Name, game.Price, 0, "")

	if err := s.api.SubmitPurchase(ctx, p.Request()); err == nil {
		s.log.Info(ctx, "purchase completed", "game", game.Name)
		return nil, nil
	} else {
		s.log.Warn(ctx, "purchase failed, queueing for retry", "game", game.Name, "error", err)
	}

	if _, err := s.wc.Send(ctx, &messages.QueuePurchase{Purchase: p}); err != nil {
		return nil, fmt.Errorf("queueing purchase: %w", err)
	}
	if _, err := s.wc.Send(ctx, &messages.RequestSync{Tag: Tag}); err != nil {
		s.log.Warn(ctx, "sync request failed", "error", err)
	}

	if err := s.RefreshPending(ctx); err != nil {
		s.log.Warn(ctx, "pending snapshot refresh failed", "error", err)
	}
	return &p, nil
}

// RefreshPending pulls the worker's queue and stores the page snapshot.
func (s *Service) RefreshPending(ctx context.Context) error {
	reply, err := s.wc.Send(ctx, &messages.GetPendingPurchases{})
	if err != nil {
		return err
	}
	upd, ok := reply.(*messages.UpdatePendingPurchases)
	if !ok {
		return fmt.Errorf("unexpected reply to pending purchases request")
	}
	return s.storePending(ctx, upd.Purchases)
}

// Pending reads the page's snapshot of the worker queue.
func (s *Service) Pending(ctx context.Context) ([]models.PendingPurchase, error) {
	raw, err := s.store.Get(ctx, status.KeyPendingPurchases)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var pending []models.PendingPurchase
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("decoding pending snapshot: %w", err)
	}
	return pending, nil
}

// HandleUpdate refreshes the snapshot from a worker broadcast.
func (s *Service) HandleUpdate(ctx context.Context, m messages.Message) {
	upd, ok := m.(*messages.UpdatePendingPurchases)
	if !ok {
		return
	}
	if err := s.storePending(ctx, upd.Purchases); err != nil {
		s.log.Warn(ctx, "storing pending snapshot failed", "error", err)
	}
}

func (s *Service) storePending(ctx context.Context, pending []models.PendingPurchase) error {
	if pending == nil {
		pending = []models.PendingPurchase{}
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, status.KeyPendingPurchases, string(data))
}

// WatchOnline probes the store until the context ends and requests a
// purchase sync on every offline-to-online transition. onChange, when set,
// observes the transitions.
func (s *Service) WatchOnline(ctx context.Context, interval time.Duration, onChange func(online bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	online := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := s.api.Ping(probeCtx)
			cancel()

			was := online
			online = err == nil
			if online == was {
				continue
			}
			if onChange != nil {
				onChange(online)
			}
			if online {
				s.log.Info(ctx, "back online, requesting purchase sync")
				if _, err := s.wc.Send(ctx, &messages.RequestSync{Tag: Tag}); err != nil {
					s.log.Warn(ctx, "sync request failed", "error", err)
				}
			}
		}
	}
}
