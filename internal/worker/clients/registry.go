// Package clients tracks the pages currently connected to the worker's event
// stream and delivers worker-to-page messages to them.
package clients

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pr-poehali-dev/game-store-offline/internal/common"
	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
)

// eventBuffer is the per-client send queue depth. A page that falls further
// behind than this loses messages rather than stalling broadcasts.
const eventBuffer = 16

// Client is one connected page.
type Client struct {
	id     string
	events chan []byte
}

func (c *Client) ID() string { return c.id }

// Events yields encoded messages for this page, closed on disconnect.
func (c *Client) Events() <-chan []byte { return c.events }

// Registry is the connected-page set, ordered by connection time.
type Registry struct {
	log logging.Logger

	mu    sync.Mutex
	order []*Client
}

func NewRegistry(log logging.Logger) *Registry {
	return &Registry{log: log.With("module", "clients")}
}

// Connect registers a new page and returns its handle.
func (r *Registry) Connect() *Client {
	c := &Client{
		id:     uuid.NewString(),
		events: make(chan []byte, eventBuffer),
	}
	r.mu.Lock()
	r.order = append(r.order, c)
	r.mu.Unlock()
	return c
}

// Disconnect removes the page and closes its event channel.
func (r *Registry) Disconnect(c *Client) {
	r.mu.Lock()
	for i, other := range r.order {
		if other == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			close(c.events)
			break
		}
	}
	r.mu.Unlock()
}

// Count reports how many pages are connected.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Broadcast delivers a message to every connected page and reports how many
// received it. Pages with a full queue are skipped.
func (r *Registry) Broadcast(ctx context.Context, m messages.Message) int {
	data, err := messages.Encode(m)
	if err != nil {
		r.log.Error(ctx, "encoding broadcast", "type", m.Type(), "error", err)
		return 0
	}

	// Sends stay under the lock so a concurrent Disconnect cannot close a
	// channel mid-send. They never block, the queue is drop-on-full.
	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for _, c := range r.order {
		if r.send(ctx, c, data, m.Type()) {
			delivered++
		}
	}
	return delivered
}

// SendFirst delivers a message to the longest-connected page only. With no
// pages connected it returns common.ErrNoClients.
func (r *Registry) SendFirst(ctx context.Context, m messages.Message) error {
	data, err := messages.Encode(m)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return common.ErrNoClients
	}
	r.send(ctx, r.order[0], data, m.Type())
	return nil
}

func (r *Registry) send(ctx context.Context, c *Client, data []byte, kind string) bool {
	select {
	case c.events <- data:
		return true
	default:
		r.log.Warn(ctx, "dropping message for slow client", "client", c.id, "type", kind)
		return false
	}
}
