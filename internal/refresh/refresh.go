// Package refresh implements the four recurring catalog refresh routines
// shared by both contexts. The worker's periodicsync dispatcher and the
// page's timer fallback run the exact same code; only the injected status
// store and the emit callback differ (broadcast to clients vs. local event
// dispatch).
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/common"
	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/models"
	"github.com/pr-poehali-dev/game-store-offline/internal/notify"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
	"github.com/pr-poehali-dev/game-store-offline/internal/storeapi"
)

// Sync intent tags, wire-compatible with the page⇄worker protocol.
const (
	TagCatalog   = "sync-games-catalog"
	TagPrices    = "sync-price-updates"
	TagReleases  = "sync-new-releases"
	TagDiscounts = "sync-discounts"
)

// releaseWindowDays is the lookback used when no prior check timestamp exists.
const releaseWindowDays = 7

// Intent is a (tag, minimum interval) pair describing one desired recurring
// background refresh.
type Intent struct {
	Tag         string
	MinInterval time.Duration
}

// Intents returns the four refresh intents with their target intervals.
func Intents() []Intent {
	return []Intent{
		{Tag: TagCatalog, MinInterval: 12 * time.Hour},
		{Tag: TagPrices, MinInterval: 6 * time.Hour},
		{Tag: TagReleases, MinInterval: 24 * time.Hour},
		{Tag: TagDiscounts, MinInterval: 3 * time.Hour},
	}
}

// StatusKey maps an intent tag to the key holding its last-run timestamp.
func StatusKey(tag string) string {
	switch tag {
	case TagCatalog:
		return status.KeyGamesCacheTimestamp
	case TagPrices:
		return status.KeyPriceSyncTimestamp
	case TagReleases:
		return status.KeyNewReleasesTimestamp
	case TagDiscounts:
		return status.KeyDiscountsSyncTimestamp
	default:
		return ""
	}
}

// Emitter relays a refresh result to whoever is listening: the worker posts
// it to connected clients, the page dispatches a local event.
type Emitter func(ctx context.Context, m messages.Message)

// Service runs the refresh routines against the store backend.
type Service struct {
	api      *storeapi.Client
	store    status.Store
	notifier notify.Notifier
	emit     Emitter
	log      logging.Logger

	now func() time.Time
}

func NewService(api *storeapi.Client, store status.Store, notifier notify.Notifier, emit Emitter, log logging.Logger) *Service {
	if notifier == nil {
		notifier = notify.Discard
	}
	if emit == nil {
		emit = func(context.Context, messages.Message) {}
	}
	return &Service{
		api:      api,
		store:    store,
		notifier: notifier,
		emit:     emit,
		log:      log.With("module", "refresh"),
		now:      time.Now,
	}
}

// Run executes the routine for one intent tag. Unknown tags are an error
// wrapping common.ErrUnknownTag.
func (s *Service) Run(ctx context.Context, tag string) error {
	switch tag {
	case TagCatalog:
		return s.Catalog(ctx)
	case TagPrices:
		return s.Prices(ctx)
	case TagReleases:
		return s.Releases(ctx)
	case TagDiscounts:
		return s.Discounts(ctx)
	default:
		return fmt.Errorf("%w: %q", common.ErrUnknownTag, tag)
	}
}

// Catalog fetches the full game list, persists it and relays it with a
// timestamp. No notification is shown.
func (s *Service) Catalog(ctx context.Context) error {
	games, err := s.api.Games(ctx, 0)
	if err != nil {
		return fmt.Errorf("catalog sync: %w", err)
	}

	now := s.now()
	if err := s.putJSON(ctx, status.KeyGamesCache, games); err != nil {
		return err
	}
	if err := status.SetTimestamp(ctx, s.store, status.KeyGamesCacheTimestamp, now); err != nil {
		return err
	}

	s.log.Info(ctx, "catalog refreshed", "games", len(games))
	s.emit(ctx, &messages.CacheGames{Games: games, Timestamp: now.UnixMilli()})
	return nil
}

// Prices fetches prices changed since the last run and merges them into the
// persisted catalog snapshot. Nothing is relayed when no price changed.
func (s *Service) Prices(ctx context.Context) error {
	since, err := status.Timestamp(ctx, s.store, status.KeyPriceSyncTimestamp)
	if err != nil {
		return err
	}

	updates, err := s.api.PriceUpdates(ctx, since)
	if err != nil {
		return fmt.Errorf("price sync: %w", err)
	}
	if len(updates) == 0 {
		return nil
	}

	var games []models.Game
	if err := s.getJSON(ctx, status.KeyGamesCache, &games); err != nil {
		return err
	}
	byID := make(map[int64]float64, len(updates))
	for _, u := range updates {
		byID[u.GameID] = u.NewPrice
	}
	for i := range games {
		if price, ok := byID[games[i].ID]; ok {
			games[i].Price = price
		}
	}

	now := s.now()
	if err := s.putJSON(ctx, status.KeyGamesCache, games); err != nil {
		return err
	}
	if err := status.SetTimestamp(ctx, s.store, status.KeyPriceSyncTimestamp, now); err != nil {
		return err
	}

	s.log.Info(ctx, "prices refreshed", "updates", len(updates))
	s.emit(ctx, &messages.PriceUpdates{Updates: updates, Timestamp: now.UnixMilli()})
	return nil
}

// Releases fetches games released since the last check (or within the last 7
// days on the first run). When any exist it persists them, shows one
// notification naming up to three titles, and relays the full list.
func (s *Service) Releases(ctx context.Context) error {
	since, err := status.Timestamp(ctx, s.store, status.KeyNewReleasesTimestamp)
	if err != nil {
		return err
	}

	games, err := s.api.NewReleases(ctx, releaseWindowDays, since)
	if err != nil {
		return fmt.Errorf("new releases sync: %w", err)
	}
	if len(games) == 0 {
		return nil
	}

	now := s.now()
	if err := s.putJSON(ctx, status.KeyNewReleases, games); err != nil {
		return err
	}
	if err := status.SetTimestamp(ctx, s.store, status.KeyNewReleasesTimestamp, now); err != nil {
		return err
	}

	names := make([]string, 0, 3)
	for _, g := range games {
		names = append(names, g.Name)
		if len(names) == 3 {
			break
		}
	}
	_ = s.notifier.Show(ctx, notify.Notification{
		Title: fmt.Sprintf("%d new games in the catalog!", len(games)),
		Body:  strings.Join(names, ", "),
		Icon:  notify.DefaultIcon,
		Badge: notify.DefaultBadge,
		Tag:   "new-releases",
	})

	s.log.Info(ctx, "new releases found", "count", len(games))
	s.emit(ctx, &messages.NewReleases{Games: games, Timestamp: now.UnixMilli()})
	return nil
}

// Discounts fetches the active discounts. The snapshot is persisted even when
// empty; a notification carrying the count and the maximum percentage (plus
// the wishlist overlap in its data bag) and a relay happen only when at least
// one discount is active.
func (s *Service) Discounts(ctx context.Context) error {
	discounts, err := s.api.Discounts(ctx)
	if err != nil {
		return fmt.Errorf("discounts sync: %w", err)
	}

	now := s.now()
	if err := s.putJSON(ctx, status.KeyActiveDiscounts, discounts); err != nil {
		return err
	}
	if err := status.SetTimestamp(ctx, s.store, status.KeyDiscountsSyncTimestamp, now); err != nil {
		return err
	}
	if len(discounts) == 0 {
		return nil
	}

	maxPercent := discounts[0].DiscountPercent
	for _, d := range discounts[1:] {
		if d.DiscountPercent > maxPercent {
			maxPercent = d.DiscountPercent
		}
	}

	_ = s.notifier.Show(ctx, notify.Notification{
		Title: "Game discounts are live!",
		Body:  fmt.Sprintf("%d games with up to %.0f%% off", len(discounts), maxPercent),
		Icon:  notify.DefaultIcon,
		Badge: notify.DefaultBadge,
		Tag:   "discounts",
		Data:  map[string]any{"wishlist": s.wishlistOverlap(ctx, discounts)},
	})

	s.log.Info(ctx, "discounts refreshed", "count", len(discounts))
	s.emit(ctx, &messages.DiscountsUpdate{Discounts: discounts, Timestamp: now.UnixMilli()})
	return nil
}

// wishlistOverlap counts active discounts on wishlisted games. A missing or
// unreadable wishlist counts as empty.
func (s *Service) wishlistOverlap(ctx context.Context, discounts []models.Discount) int {
	var ids []int64
	if err := s.getJSON(ctx, status.KeyWishlist, &ids); err != nil || len(ids) == 0 {
		return 0
	}
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	n := 0
	for _, d := range discounts {
		if _, ok := wanted[d.GameID]; ok {
			n++
		}
	}
	return n
}

func (s *Service) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.store.Set(ctx, key, string(data))
}

// getJSON reads a JSON value; an absent key leaves v untouched.
func (s *Service) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
