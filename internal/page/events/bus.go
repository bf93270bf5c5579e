// Package events is the page-local dispatch for worker messages and fallback
// refresh results. Handlers run synchronously in subscription order, the way
// window event listeners do.
package events

import (
	"context"
	"sync"

	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
)

// Handler consumes one message.
type Handler func(ctx context.Context, m messages.Message)

// Bus fans messages out to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	any      []Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for one message type.
func (b *Bus) Subscribe(msgType string, h Handler) {
	b.mu.Lock()
	b.handlers[msgType] = append(b.handlers[msgType], h)
	b.mu.Unlock()
}

// SubscribeAll registers a handler for every message type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	b.any = append(b.any, h)
	b.mu.Unlock()
}

// Publish dispatches a message to its subscribers.
func (b *Bus) Publish(ctx context.Context, m messages.Message) {
	b.mu.RLock()
	typed := make([]Handler, len(b.handlers[m.Type()]))
	copy(typed, b.handlers[m.Type()])
	all := make([]Handler, len(b.any))
	copy(all, b.any)
	b.mu.RUnlock()

	for _, h := range typed {
		h(ctx, m)
	}
	for _, h := range all {
		h(ctx, m)
	}
}
