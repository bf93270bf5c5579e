// Package storeapi is a typed HTTP client for the game-store backend. Both
// contexts use it: the worker's sync dispatcher and the page's fallback
// refresh routines hit the same endpoints.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/models"
)

// DefaultTimeout bounds every request. The upstream has no timeout of its
// own, so a hung fetch would otherwise stall the enclosing sync event
// indefinitely.
const DefaultTimeout = 30 * time.Second

type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client for the given base URL, e.g. "https://store.example".
// A non-positive timeout falls back to DefaultTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing store base url: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// Ping probes reachability of the backend. Any HTTP response counts as
// reachable; only transport errors count as offline.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath("/").String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Games fetches the full catalog. limit <= 0 uses the catalog default of 1000.
func (c *Client) Games(ctx context.Context, limit int) ([]models.Game, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var games []models.Game
	if err := c.getJSON(ctx, "/api/games", q, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// PriceUpdates fetches prices changed since the given Unix-millisecond
// timestamp. since == 0 asks for all known updates.
func (c *Client) PriceUpdates(ctx context.Context, since int64) ([]models.PriceUpdate, error) {
	q := url.Values{}
	if since > 0 {
		q.Set("since", strconv.FormatInt(since, 10))
	}
	var updates []models.PriceUpdate
	if err := c.getJSON(ctx, "/api/games/price-updates", q, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// NewReleases fetches games released since the given Unix-millisecond
// timestamp, or within the last `days` days when since == 0.
func (c *Client) NewReleases(ctx context.Context, days int, since int64) ([]models.Game, error) {
	q := url.Values{}
	if since > 0 {
		q.Set("since", strconv.FormatInt(since, 10))
	} else {
		if days <= 0 {
			days = 7
		}
		q.Set("days", strconv.Itoa(days))
	}
	var games []models.Game
	if err := c.getJSON(ctx, "/api/games/new-releases", q, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// Discounts fetches the currently active discounts.
func (c *Client) Discounts(ctx context.Context) ([]models.Discount, error) {
	q := url.Values{"active": {"true"}}
	var discounts []models.Discount
	if err := c.getJSON(ctx, "/api/games/discounts", q, &discounts); err != nil {
		return nil, err
	}
	return discounts, nil
}

// SubmitPurchase POSTs one purchase. Any 2xx status means the server accepted
// it; everything else is an error and the caller keeps the record queued.
func (c *Client) SubmitPurchase(ctx context.Context, p models.PurchaseRequest) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding purchase: %w", err)
	}

	u := c.base.JoinPath("/api/purchases")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submitting purchase: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("submitting purchase: unexpected status %s", resp.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}
