// Package syncd dispatches sync events inside the worker. The one-shot
// purchase retry pass and the periodic catalog refreshes both land here; the
// dispatcher also tracks in-flight passes so shutdown can drain them.
package syncd

import (
	"context"
	"fmt"
	"sync"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/notify"
	"github.com/pr-poehali-dev/game-store-offline/internal/refresh"
	"github.com/pr-poehali-dev/game-store-offline/internal/storeapi"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/purchases"
)

// TagPurchases is the one-shot sync tag for the pending purchase queue.
const TagPurchases = "sync-purchases"

// Dispatcher routes sync tags to their handlers.
type Dispatcher struct {
	queue     purchases.Repository
	api       *storeapi.Client
	refresher *refresh.Service
	notifier  notify.Notifier
	broadcast refresh.Emitter
	log       logging.Logger

	wg sync.WaitGroup
}

func NewDispatcher(queue purchases.Repository, api *storeapi.Client, refresher *refresh.Service, notifier notify.Notifier, broadcast refresh.Emitter, log logging.Logger) *Dispatcher {
	if notifier == nil {
		notifier = notify.Discard
	}
	if broadcast == nil {
		broadcast = func(context.Context, messages.Message) {}
	}
	return &Dispatcher{
		queue:     queue,
		api:       api,
		refresher: refresher,
		notifier:  notifier,
		broadcast: broadcast,
		log:       log.With("module", "syncd"),
	}
}

// HandleSync runs one sync pass for a tag. The purchase tag drains the retry
// queue; every other tag is a refresh routine.
func (d *Dispatcher) HandleSync(ctx context.Context, tag string) error {
	if tag == TagPurchases {
		return d.syncPurchases(ctx)
	}
	return d.refresher.Run(ctx, tag)
}

// Go runs a sync pass in the background, tracked for Drain.
func (d *Dispatcher) Go(ctx context.Context, tag string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.HandleSync(ctx, tag); err != nil {
			d.log.Warn(ctx, "sync pass failed", "tag", tag, "error", err)
		}
	}()
}

// Drain blocks until every background pass started via Go has finished.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}

// syncPurchases retries every queued purchase in order. A failed submission
// keeps its record queued and the pass moves on, so one bad record cannot
// block the rest. Running with an empty or fully-failing queue is harmless,
// repeated passes converge on the same state.
func (d *Dispatcher) syncPurchases(ctx context.Context) error {
	pending, err := d.queue.List(ctx)
	if err != nil {
		return fmt.Errorf("sync purchases: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	synced, failed := 0, 0
	for _, p := range pending {
		if err := d.api.SubmitPurchase(ctx, p.Request()); err != nil {
			d.log.Warn(ctx, "purchase submission failed", "id", p.ID, "game", p.GameName, "error", err)
			failed++
			continue
		}
		if err := d.queue.Remove(ctx, p.ID); err != nil {
			return fmt.Errorf("sync purchases: %w", err)
		}
		synced++
	}
	if synced == 0 {
		return nil
	}

	remaining, err := d.queue.List(ctx)
	if err != nil {
		return fmt.Errorf("sync purchases: %w", err)
	}

	body := fmt.Sprintf("All purchases submitted (%d)", synced)
	if failed > 0 {
		body = fmt.Sprintf("Submitted %d purchases, %d failed", synced, failed)
	}
	_ = d.notifier.Show(ctx, notify.Notification{
		Title: "Sync complete",
		Body:  body,
		Icon:  notify.DefaultIcon,
		Badge: notify.DefaultBadge,
		Tag:   "sync-complete",
	})
	d.broadcast(ctx, &messages.UpdatePendingPurchases{Purchases: remaining})

	d.log.Info(ctx, "purchase queue synced", "synced", synced, "failed", failed)
	return nil
}
