// Package status defines the persisted key-value snapshot both contexts use
// to remember sync results and last-run timestamps. The worker backs it with
// its sqlite database; the page uses its local storage; tests use memory. The
// refresh routines receive a Store instead of touching any ambient global.
package status

import (
	"context"
	"strconv"
	"time"
)

// Persisted keys, shared between the worker snapshot and page-local storage.
const (
	KeyGamesCache             = "games_cache"
	KeyGamesCacheTimestamp    = "games_cache_timestamp"
	KeyPriceSyncTimestamp     = "price_sync_timestamp"
	KeyNewReleases            = "new_releases"
	KeyNewReleasesTimestamp   = "new_releases_check_timestamp"
	KeyActiveDiscounts        = "active_discounts"
	KeyDiscountsSyncTimestamp = "discounts_sync_timestamp"
	KeyPendingPurchases       = "pending_purchases"
	KeyWishlist               = "wishlist"
)

// Store is a flat persisted key-value snapshot. Get returns an empty string
// for an absent key; absence and emptiness are deliberately indistinguishable,
// matching the storage the original page relied on.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Timestamp reads a Unix-millisecond timestamp stored under key. Absent or
// unparsable values read as zero.
func Timestamp(ctx context.Context, s Store, key string) (int64, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	return ms, nil
}

// SetTimestamp stores a Unix-millisecond timestamp under key.
func SetTimestamp(ctx context.Context, s Store, key string, t time.Time) error {
	return s.Set(ctx, key, strconv.FormatInt(t.UnixMilli(), 10))
}
