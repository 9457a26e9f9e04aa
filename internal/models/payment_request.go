package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment request statuses. A request starts pending and transitions exactly
// once to one of the terminal statuses.
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusCancelled = "cancelled"
)

// PaymentRequest is a money request between users. FromUserID is the
// requester asking to be paid; ToUserID is the payer who must fund it.
// The payer sees it as incoming, the requester as outgoing.
type PaymentRequest struct {
	ID         int64           `json:"id"`
	FromUserID int64           `json:"from_user_id"`
	ToUserID   int64           `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	Message    string          `json:"message,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`

	// Display-only fields
	FromUsername string `json:"from_username,omitempty"`
	ToUsername   string `json:"to_username,omitempty"`
}
