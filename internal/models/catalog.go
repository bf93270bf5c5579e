// Package models defines the data types exchanged with the game-store backend
// and between the page and worker contexts.
package models

// Game is one catalog entry as returned by GET /api/games.
type Game struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Platform    string  `json:"platform,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
}

// PriceUpdate is one changed price as returned by /api/games/price-updates.
type PriceUpdate struct {
	GameID   int64   `json:"game_id"`
	NewPrice float64 `json:"new_price"`
}

// Discount is one active discount as returned by /api/games/discounts.
type Discount struct {
	GameID          int64   `json:"game_id"`
	DiscountPercent float64 `json:"discount_percent"`
	Name            string  `json:"name,omitempty"`
}
