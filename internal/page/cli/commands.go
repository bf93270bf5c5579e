package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/models"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/backgroundsync"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/periodicsync"
	"github.com/pr-poehali-dev/game-store-offline/internal/refresh"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
	"github.com/pr-poehali-dev/game-store-offline/internal/timex"
)

// Games lists the catalog. The request goes through the worker's gateway, so
// it is answered from cache when the store is unreachable; without a worker
// the last local snapshot stands in.
func (a *App) Games(ctx context.Context) error {
	games, err := a.api.Games(ctx, 0)
	if err != nil {
		a.log.Warn(ctx, "catalog fetch failed, using local snapshot", "error", err)
		games, err = a.localCatalog(ctx)
		if err != nil {
			printlnFn("Catalog unavailable:", err)
			return err
		}
		if games == nil {
			printlnFn("Catalog unavailable and no local snapshot yet.")
			return nil
		}
	} else if err := a.storeCatalog(ctx, games, time.Now().UnixMilli()); err != nil {
		a.log.Warn(ctx, "storing catalog snapshot failed", "error", err)
	}

	printlnFn(fmt.Sprintf("%d games:", len(games)))
	for _, g := range games {
		line := fmt.Sprintf("  %d. %s - $%.2f", g.ID, g.Name, g.Price)
		if g.Platform != "" {
			line += " (" + g.Platform + ")"
		}
		printlnFn(line)
	}
	return nil
}

// Buy purchases a game by its catalog id. When the store cannot be reached
// the purchase is queued with the worker and completed by the next sync.
func (a *App) Buy(ctx context.Context, id string) error {
	gameID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		printlnFn("Usage: buy <id>")
		return err
	}

	game, err := a.findGame(ctx, gameID)
	if err != nil {
		printlnFn("Cannot buy:", err)
		return err
	}

	queued, err := a.purchases.Purchase(ctx, game)
	if err != nil {
		printlnFn("Purchase failed:", err)
		return err
	}
	if queued != nil {
		printlnFn(fmt.Sprintf("Store unreachable; %s queued for background sync (%s)", game.Name, queued.ID))
		return nil
	}
	printlnFn(fmt.Sprintf("Purchased %s for $%.2f", game.Name, game.Price))
	return nil
}

func (a *App) findGame(ctx context.Context, id int64) (models.Game, error) {
	games, err := a.api.Games(ctx, 0)
	if err != nil {
		games, err = a.localCatalog(ctx)
		if err != nil || games == nil {
			return models.Game{}, fmt.Errorf("no catalog available")
		}
	}
	for _, g := range games {
		if g.ID == id {
			return g, nil
		}
	}
	return models.Game{}, fmt.Errorf("no game with id %d", id)
}

// Pending lists purchases still waiting for a successful sync.
func (a *App) Pending(ctx context.Context) error {
	if a.platform {
		if err := a.purchases.RefreshPending(ctx); err != nil {
			a.log.Warn(ctx, "pending refresh failed", "error", err)
		}
	}

	pending, err := a.purchases.Pending(ctx)
	if err != nil {
		printlnFn("Pending purchases unavailable:", err)
		return err
	}
	if len(pending) == 0 {
		printlnFn("No pending purchases.")
		return nil
	}
	printlnFn(fmt.Sprintf("%d pending:", len(pending)))
	for _, p := range pending {
		printlnFn(fmt.Sprintf("  %s - $%.2f, queued %s", p.GameName, p.Amount, timex.HumanAge(p.QueuedAt, time.Now())))
	}
	return nil
}

// Sync asks the worker for a purchase sync pass.
func (a *App) Sync(ctx context.Context) error {
	if !a.platform {
		printlnFn("No worker; queued purchases sync when one is running.")
		return nil
	}
	if _, err := a.wc.Send(ctx, &messages.RequestSync{Tag: backgroundsync.Tag}); err != nil {
		printlnFn("Sync request failed:", err)
		return err
	}
	printlnFn("Sync requested.")
	return nil
}

// Refresh runs one background refresh immediately: on the worker when one is
// present, in-process otherwise.
func (a *App) Refresh(ctx context.Context, tag string) error {
	if refresh.StatusKey(tag) == "" {
		printlnFn("Unknown tag. Tags:", strings.Join(refreshTags(), ", "))
		return fmt.Errorf("unknown tag %q", tag)
	}

	if a.platform {
		if _, err := a.wc.Send(ctx, &messages.RequestSync{Tag: tag}); err != nil {
			printlnFn("Refresh request failed:", err)
			return err
		}
		printlnFn("Refresh requested from worker.")
		return nil
	}

	if err := a.refresher.Run(ctx, tag); err != nil {
		printlnFn("Refresh failed:", err)
		return err
	}
	printlnFn("Refresh done.")
	return nil
}

// SyncAll runs every refresh routine once, immediately, regardless of
// schedule. Individual failures are reported without aborting the batch.
func (a *App) SyncAll(ctx context.Context) error {
	results := periodicsync.ManualSyncAll(ctx, a.refresher.Run, a.log)
	for _, in := range refresh.Intents() {
		if results[in.Tag] {
			printlnFn(fmt.Sprintf("  %s: ok", in.Tag))
		} else {
			printlnFn(fmt.Sprintf("  %s: failed", in.Tag))
		}
	}
	return nil
}

// SyncStatus prints each refresh intent's last-run age.
func (a *App) SyncStatus(ctx context.Context) error {
	statuses, err := periodicsync.SyncStatus(ctx, a.store, time.Now())
	if err != nil {
		printlnFn("Sync status unavailable:", err)
		return err
	}
	for _, s := range statuses {
		printlnFn(fmt.Sprintf("  %s: %s", s.Tag, s.Age))
	}
	return nil
}

// Status prints the worker's capability snapshot.
func (a *App) Status(ctx context.Context) error {
	ws, err := a.wc.Status(ctx)
	if err != nil {
		printlnFn("Worker unreachable:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Worker %s (%s), %d client(s), %d pending purchase(s)", ws.Version, ws.State, ws.Clients, ws.PendingPurchases))
	if len(ws.Caches) > 0 {
		printlnFn("Caches:", strings.Join(ws.Caches, ", "))
	}
	if len(ws.PeriodicSyncTags) > 0 {
		printlnFn("Periodic syncs:", strings.Join(ws.PeriodicSyncTags, ", "))
	}
	return nil
}

// Syncs lists the periodic sync registrations on the active scheduler.
func (a *App) Syncs(ctx context.Context) error {
	tags, err := a.sched.Tags(ctx)
	if err != nil {
		printlnFn("Registrations unavailable:", err)
		return err
	}
	if len(tags) == 0 {
		printlnFn("No periodic syncs registered.")
		return nil
	}
	printlnFn("Periodic syncs:", strings.Join(tags, ", "))
	return nil
}

// RegisterSync adds a periodic sync registration with the given interval.
func (a *App) RegisterSync(ctx context.Context, tag, seconds string) error {
	secs, err := strconv.Atoi(seconds)
	if err != nil || secs <= 0 {
		printlnFn("Usage: register-sync <tag> <seconds>")
		return fmt.Errorf("invalid interval %q", seconds)
	}
	if err := a.sched.Register(ctx, tag, time.Duration(secs)*time.Second); err != nil {
		printlnFn("Registration failed:", err)
		return err
	}
	printlnFn("Registered", tag)
	return nil
}

// UnregisterSync removes a periodic sync registration.
func (a *App) UnregisterSync(ctx context.Context, tag string) error {
	if err := a.sched.Unregister(ctx, tag); err != nil {
		printlnFn("Unregistration failed:", err)
		return err
	}
	printlnFn("Unregistered", tag)
	return nil
}

// Wishlist shows or edits the wishlist that discount notifications are
// matched against. action is "", "add" or "remove".
func (a *App) Wishlist(ctx context.Context, action, id string) error {
	ids, err := a.wishlistIDs(ctx)
	if err != nil {
		printlnFn("Wishlist unavailable:", err)
		return err
	}

	switch action {
	case "":
		if len(ids) == 0 {
			printlnFn("Wishlist is empty.")
			return nil
		}
		out := make([]string, len(ids))
		for i, v := range ids {
			out[i] = strconv.FormatInt(v, 10)
		}
		printlnFn("Wishlist:", strings.Join(out, ", "))
		return nil

	case "add", "remove":
		gameID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			printlnFn("Usage: wishlist", action, "<id>")
			return err
		}
		next := ids[:0]
		for _, v := range ids {
			if v != gameID {
				next = append(next, v)
			}
		}
		if action == "add" {
			next = append(next, gameID)
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		if err := a.store.Set(ctx, status.KeyWishlist, string(data)); err != nil {
			printlnFn("Updating wishlist failed:", err)
			return err
		}
		printlnFn("Wishlist updated.")
		return nil

	default:
		printlnFn("Usage: wishlist [add|remove <id>]")
		return fmt.Errorf("unknown wishlist action %q", action)
	}
}

func (a *App) wishlistIDs(ctx context.Context) ([]int64, error) {
	raw, err := a.store.Get(ctx, status.KeyWishlist)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decoding wishlist: %w", err)
	}
	return ids, nil
}

// ClearCache asks the worker to drop every cache partition.
func (a *App) ClearCache(ctx context.Context) error {
	if !a.platform {
		printlnFn("No worker; nothing to clear.")
		return nil
	}
	if _, err := a.wc.Send(ctx, &messages.ClearCache{}); err != nil {
		printlnFn("Clearing caches failed:", err)
		return err
	}
	printlnFn("Caches cleared.")
	return nil
}

// SkipWaiting lets a worker parked behind an old version activate now.
func (a *App) SkipWaiting(ctx context.Context) error {
	if !a.platform {
		printlnFn("No worker running.")
		return nil
	}
	if _, err := a.wc.Send(ctx, &messages.SkipWaiting{}); err != nil {
		printlnFn("Skip waiting failed:", err)
		return err
	}
	printlnFn("Worker told to activate.")
	return nil
}

func refreshTags() []string {
	intents := refresh.Intents()
	tags := make([]string, len(intents))
	for i, in := range intents {
		tags[i] = in.Tag
	}
	return tags
}
