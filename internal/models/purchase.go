package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingPurchase is a locally queued purchase awaiting server acknowledgment.
// It is created when an online purchase attempt fails and removed once a
// retried submission succeeds.
type PendingPurchase struct {
	// ID is the local identity of the queued record, not a server id.
	ID            string    `json:"id"`
	GameID        int64     `json:"game_id"`
	GameName      string    `json:"game_name"`
	Amount        float64   `json:"amount"`
	UserID        int64     `json:"user_id"`
	PaymentMethod string    `json:"payment_method"`
	QueuedAt      time.Time `json:"queued_at"`
}

// NewPendingPurchase builds a queued record with a fresh local id.
func NewPendingPurchase(gameID int64, name string, amount float64, userID int64, method string) PendingPurchase {
	if method == "" {
		method = "card"
	}
	if userID == 0 {
		userID = 1
	}
	return PendingPurchase{
		ID:            uuid.NewString(),
		GameID:        gameID,
		GameName:      name,
		Amount:        amount,
		UserID:        userID,
		PaymentMethod: method,
		QueuedAt:      time.Now().UTC(),
	}
}

// PurchaseRequest is the body POSTed to /api/purchases.
type PurchaseRequest struct {
	GameID        int64   `json:"game_id"`
	UserID        int64   `json:"user_id"`
	PaymentMethod string  `json:"payment_method"`
	Amount        float64 `json:"amount"`
}

// Request converts a queued record into the server submission body.
func (p PendingPurchase) Request() PurchaseRequest {
	return PurchaseRequest{
		GameID:        p.GameID,
		UserID:        p.UserID,
		PaymentMethod: p.PaymentMethod,
		Amount:        p.Amount,
	}
}
