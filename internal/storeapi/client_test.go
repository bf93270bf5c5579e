package storeapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/game-store-offline/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)
	return c
}

func TestGames(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]models.Game{{ID: 1, Name: "Game A"}, {ID: 2, Name: "Game B"}})
	})

	games, err := c.Games(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Game A", games[0].Name)
}

func TestPriceUpdates_SinceParam(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games/price-updates", r.URL.Path)
		assert.Equal(t, "1700000000000", r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]models.PriceUpdate{{GameID: 1, NewPrice: 9.99}})
	})

	updates, err := c.PriceUpdates(context.Background(), 1700000000000)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.InDelta(t, 9.99, updates[0].NewPrice, 0.001)
}

func TestNewReleases_DaysFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games/new-releases", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		assert.Empty(t, r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]models.Game{})
	})

	_, err := c.NewReleases(context.Background(), 0, 0)
	require.NoError(t, err)
}

func TestDiscounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		_ = json.NewEncoder(w).Encode([]models.Discount{{GameID: 3, DiscountPercent: 25}})
	})

	discounts, err := c.Discounts(context.Background())
	require.NoError(t, err)
	require.Len(t, discounts, 1)
}

func TestGetJSON_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Games(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSubmitPurchase(t *testing.T) {
	var got models.PurchaseRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/purchases", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	})

	err := c.SubmitPurchase(context.Background(), models.PurchaseRequest{
		GameID: 7, UserID: 1, PaymentMethod: "card", Amount: 59.99,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.GameID)
}

func TestSubmitPurchase_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.SubmitPurchase(context.Background(), models.PurchaseRequest{GameID: 7})
	assert.Error(t, err)
}
