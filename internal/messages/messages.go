// Package messages defines the page⇄worker message protocol as a tagged
// union discriminated by a "type" field. Every message kind is a concrete
// struct; Decode matches exhaustively so adding a kind is a compile-visible
// change in one place.
package messages

import (
	"encoding/json"
	"fmt"

	"github.com/pr-poehali-dev/game-store-offline/internal/common"
	"github.com/pr-poehali-dev/game-store-offline/internal/models"
	"github.com/pr-poehali-dev/game-store-offline/internal/notify"
)

// Message type discriminators, wire-compatible with the page⇄worker protocol.
const (
	TypeSkipWaiting            = "SKIP_WAITING"
	TypeClearCache             = "CLEAR_CACHE"
	TypeGetPendingPurchases    = "GET_PENDING_PURCHASES"
	TypeUpdatePendingPurchases = "UPDATE_PENDING_PURCHASES"
	TypeQueuePurchase          = "QUEUE_PURCHASE"
	TypeRequestSync            = "REQUEST_SYNC"
	TypeRegisterPeriodicSync   = "REGISTER_PERIODIC_SYNC"
	TypeUnregisterPeriodicSync = "UNREGISTER_PERIODIC_SYNC"
	TypeCacheGames             = "CACHE_GAMES"
	TypePriceUpdates           = "PRICE_UPDATES"
	TypeNewReleases            = "NEW_RELEASES"
	TypeDiscountsUpdate        = "DISCOUNTS_UPDATE"
	TypeNotification           = "NOTIFICATION"
	TypeControllerChange       = "CONTROLLER_CHANGE"
	TypeNavigate               = "NAVIGATE"
)

// Message is one page⇄worker message.
type Message interface {
	Type() string
}

// Commands sent by the page to the worker.

// SkipWaiting forces the waiting worker version to activate immediately.
type SkipWaiting struct{}

func (SkipWaiting) Type() string { return TypeSkipWaiting }

// ClearCache deletes all cache partitions unconditionally.
type ClearCache struct{}

func (ClearCache) Type() string { return TypeClearCache }

// GetPendingPurchases asks for the worker's pending purchase queue. The
// worker answers with UpdatePendingPurchases on the same channel.
type GetPendingPurchases struct{}

func (GetPendingPurchases) Type() string { return TypeGetPendingPurchases }

// QueuePurchase adds one purchase to the worker's durable retry queue.
type QueuePurchase struct {
	Purchase models.PendingPurchase `json:"purchase"`
}

func (QueuePurchase) Type() string { return TypeQueuePurchase }

// RequestSync asks the worker to run a one-shot sync pass for the given tag.
type RequestSync struct {
	Tag string `json:"tag"`
}

func (RequestSync) Type() string { return TypeRequestSync }

// RegisterPeriodicSync registers a recurring sync intent with the worker's
// scheduler. MinIntervalMS mirrors the platform API's millisecond interval.
type RegisterPeriodicSync struct {
	Tag           string `json:"tag"`
	MinIntervalMS int64  `json:"minInterval"`
}

func (RegisterPeriodicSync) Type() string { return TypeRegisterPeriodicSync }

// UnregisterPeriodicSync removes a previously registered sync intent.
type UnregisterPeriodicSync struct {
	Tag string `json:"tag"`
}

func (UnregisterPeriodicSync) Type() string { return TypeUnregisterPeriodicSync }

// Events relayed by the worker to connected pages.

// UpdatePendingPurchases carries the current pending queue so pages can
// refresh their local snapshot.
type UpdatePendingPurchases struct {
	Purchases []models.PendingPurchase `json:"purchases"`
}

func (UpdatePendingPurchases) Type() string { return TypeUpdatePendingPurchases }

// CacheGames relays a freshly fetched catalog.
type CacheGames struct {
	Games     []models.Game `json:"games"`
	Timestamp int64         `json:"timestamp"`
}

func (CacheGames) Type() string { return TypeCacheGames }

// PriceUpdates relays changed prices.
type PriceUpdates struct {
	Updates   []models.PriceUpdate `json:"updates"`
	Timestamp int64                `json:"timestamp"`
}

func (PriceUpdates) Type() string { return TypePriceUpdates }

// NewReleases relays games released within the lookback window.
type NewReleases struct {
	Games     []models.Game `json:"games"`
	Timestamp int64         `json:"timestamp"`
}

func (NewReleases) Type() string { return TypeNewReleases }

// DiscountsUpdate relays the currently active discounts.
type DiscountsUpdate struct {
	Discounts []models.Discount `json:"discounts"`
	Timestamp int64             `json:"timestamp"`
}

func (DiscountsUpdate) Type() string { return TypeDiscountsUpdate }

// Notification relays a displayed notification to pages.
type Notification struct {
	Notification notify.Notification `json:"notification"`
}

func (Notification) Type() string { return TypeNotification }

// ControllerChange announces that a new worker version has claimed clients.
type ControllerChange struct {
	Version string `json:"version"`
}

func (ControllerChange) Type() string { return TypeControllerChange }

// Navigate asks a page to bring the given URL into view. Sent to a single
// page when the user acts on a notification.
type Navigate struct {
	URL string `json:"url"`
}

func (Navigate) Type() string { return TypeNavigate }

// Encode marshals a message to its flat wire form with the type
// discriminator injected alongside the payload fields.
func Encode(m Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	t, err := json.Marshal(m.Type())
	if err != nil {
		return nil, err
	}
	obj["type"] = t
	return json.Marshal(obj)
}

// Decode parses wire bytes into the matching concrete message. An
// unrecognized discriminator is an error wrapping common.ErrUnknownMessage.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding message envelope: %w", err)
	}

	var m Message
	switch env.Type {
	case TypeSkipWaiting:
		m = &SkipWaiting{}
	case TypeClearCache:
		m = &ClearCache{}
	case TypeGetPendingPurchases:
		m = &GetPendingPurchases{}
	case TypeUpdatePendingPurchases:
		m = &UpdatePendingPurchases{}
	case TypeQueuePurchase:
		m = &QueuePurchase{}
	case TypeRequestSync:
		m = &RequestSync{}
	case TypeRegisterPeriodicSync:
		m = &RegisterPeriodicSync{}
	case TypeUnregisterPeriodicSync:
		m = &UnregisterPeriodicSync{}
	case TypeCacheGames:
		m = &CacheGames{}
	case TypePriceUpdates:
		m = &PriceUpdates{}
	case TypeNewReleases:
		m = &NewReleases{}
	case TypeDiscountsUpdate:
		m = &DiscountsUpdate{}
	case TypeNotification:
		m = &Notification{}
	case TypeControllerChange:
		m = &ControllerChange{}
	case TypeNavigate:
		m = &Navigate{}
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownMessage, env.Type)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decoding %s message: %w", env.Type, err)
	}
	return m, nil
}
