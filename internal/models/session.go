package models

import "time"

// Session represents an active login session. Token doubles as the JWT ID,
// so deleting the row revokes the token.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"session_token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
