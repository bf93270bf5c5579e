// Package upstream fetches responses from the application origin on behalf of
// the worker. Both the precache bootstrap and the runtime fetch strategies go
// through it, so every cached entry is built the same way.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/worker/cache"
)

// DefaultTimeout bounds one origin fetch.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of an origin response the worker will buffer for
// caching. Larger bodies fail the fetch rather than exhausting memory.
const maxBodyBytes = 32 << 20

type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client rooted at the origin base URL. A non-positive timeout
// falls back to DefaultTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing origin url: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// Base returns the origin base URL.
func (c *Client) Base() *url.URL { return c.base }

// Fetch GETs ref (a path or absolute URL resolved against the origin) and
// returns the response as a cacheable entry. Transport failures and oversized
// bodies are errors; HTTP error statuses are not, the caller inspects Status.
func (c *Client) Fetch(ctx context.Context, ref string) (*cache.Entry, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ref, err)
	}
	target := c.base.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("fetching %s: body exceeds %d bytes", ref, maxBodyBytes)
	}

	return &cache.Entry{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		CachedAt: time.Now().UTC(),
	}, nil
}
