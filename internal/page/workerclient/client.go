// Package workerclient is the page's handle on the worker daemon: sending
// commands, probing capability, and following the event stream.
package workerclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pr-poehali-dev/game-store-offline/internal/common"
	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
)

// DefaultTimeout bounds one command request. The event stream is exempt, it
// stays open for the life of the page.
const DefaultTimeout = 10 * time.Second

// WorkerStatus is the worker's capability and state report.
type WorkerStatus struct {
	Version          string   `json:"version"`
	State            string   `json:"state"`
	Clients          int      `json:"clients"`
	PendingPurchases int      `json:"pending_purchases"`
	PeriodicSyncTags []string `json:"periodic_sync_tags"`
	Caches           []string `json:"caches"`
}

type Client struct {
	base   *url.URL
	http   *http.Client
	stream *http.Client
	log    logging.Logger
}

func New(baseURL string, timeout time.Duration, log logging.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing worker url: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		stream: &http.Client{},
		log:    log.With("module", "workerclient"),
	}, nil
}

// Send posts one command. When the worker answers with a message (the pending
// purchase snapshot), it is decoded and returned; plain acknowledgments
// return nil. A 403 maps to common.ErrPermissionDenied.
func (c *Client) Send(ctx context.Context, m messages.Message) (messages.Message, error) {
	data, err := messages.Encode(m)
	if err != nil {
		return nil, err
	}

	u := c.base.JoinPath("/worker/message")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", m.Type(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("sending %s: %w", m.Type(), common.ErrPermissionDenied)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("sending %s: %s: %s", m.Type(), resp.Status, strings.TrimSpace(string(body)))
	}

	reply, err := messages.Decode(body)
	if err != nil {
		// Acknowledgments have no type discriminator.
		return nil, nil
	}
	return reply, nil
}

// Status fetches the worker's state report.
func (c *Client) Status(ctx context.Context) (*WorkerStatus, error) {
	u := c.base.JoinPath("/worker/status")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("worker status: unexpected status %s", resp.Status)
	}

	var ws WorkerStatus
	if err := json.NewDecoder(resp.Body).Decode(&ws); err != nil {
		return nil, fmt.Errorf("worker status: %w", err)
	}
	return &ws, nil
}

// Probe checks whether a worker is reachable, retrying briefly with backoff
// so a page starting alongside the daemon does not give up too early. The
// returned error wraps common.ErrNotSupported when no worker answers.
func (c *Client) Probe(ctx context.Context) (*WorkerStatus, error) {
	var ws *WorkerStatus
	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := c.Status(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		ws = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: no worker at %s: %v", common.ErrNotSupported, c.base, err)
	}
	return ws, nil
}

// Listen follows the worker's event stream, handing each decoded message to
// the handler. It returns when the context ends or the stream drops; callers
// reconnect on their own schedule.
func (c *Client) Listen(ctx context.Context, handle func(ctx context.Context, m messages.Message)) error {
	u := c.base.JoinPath("/worker/events")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		m, err := messages.Decode([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			c.log.Warn(ctx, "undecodable event", "error", err)
			continue
		}
		handle(ctx, m)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event stream: %w", err)
	}
	return ctx.Err()
}
