package models

import "time"

// Card represents a user's virtual debit card. CardNumber is derived from
// the account number and RefreshSeed, never random.
type Card struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	CardNumber      string     `json:"card_number"`
	ExpiryDate      string     `json:"expiry_date"`
	RefreshSeed     int        `json:"refresh_seed"`
	LastRefreshDate *time.Time `json:"last_refresh_date"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
