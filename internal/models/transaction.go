package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a financial transaction between two users. When
// listed for a user, Amount is signed from that user's viewpoint (outgoing
// negative, incoming positive).
type Transaction struct {
	ID              int64           `json:"id"`
	FromUserID      int64           `json:"from_user_id"`
	ToUserID        int64           `json:"to_user_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType string          `json:"transaction_type"` // "transfer", "request_payment"
	Description     string          `json:"description"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`

	// Display-only fields
	FromUsername string `json:"from_username,omitempty"`
	ToUsername   string `json:"to_username,omitempty"`
}
