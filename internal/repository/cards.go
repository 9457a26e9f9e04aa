package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viridian-city/bank-service/internal/models"
)

// ErrNoActiveCard is returned when a user has no active card yet.
var ErrNoActiveCard = errors.New("no active card")

// ErrRefreshConflict is returned when a concurrent refresh already replaced
// the card the caller was refreshing.
var ErrRefreshConflict = errors.New("card was already refreshed")

// GetActiveCard retrieves the user's current active card.
func (r *Repository) GetActiveCard(ctx context.Context, userID int64) (*models.Card, error) {
	query := `
		SELECT id, user_id, card_number, expiry_date, refresh_seed,
		       last_refresh_date, is_active, created_at, updated_at
		FROM cards
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1`

	card := &models.Card{}
	var lastRefresh sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&card.ID, &card.UserID, &card.CardNumber, &card.ExpiryDate,
		&card.RefreshSeed, &lastRefresh, &card.IsActive,
		&card.CreatedAt, &card.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveCard
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active card: %w", err)
	}
	if lastRefresh.Valid {
		card.LastRefreshDate = &lastRefresh.Time
	}
	return card, nil
}

// CreateCard stores a new active card and fills its id and timestamps.
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (user_id, card_number, expiry_date, refresh_seed, last_refresh_date, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at, updated_at`
	var lastRefresh sql.NullTime
	if card.LastRefreshDate != nil {
		lastRefresh = sql.NullTime{Time: *card.LastRefreshDate, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, query,
		card.UserID, card.CardNumber, card.ExpiryDate, card.RefreshSeed, lastRefresh).
		Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	card.IsActive = true
	return nil
}

// ReplaceCard deactivates the old card and inserts its successor in one
// transaction. The deactivation is conditional on the old card still being
// active, so two concurrent refreshes cannot both succeed.
func (r *Repository) ReplaceCard(ctx context.Context, oldCardID int64, newCard *models.Card) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin card refresh: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE cards SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_active = TRUE`, oldCardID)
	if err != nil {
		return fmt.Errorf("failed to deactivate card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRefreshConflict
	}

	var lastRefresh sql.NullTime
	if newCard.LastRefreshDate != nil {
		lastRefresh = sql.NullTime{Time: *newCard.LastRefreshDate, Valid: true}
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO cards (user_id, card_number, expiry_date, refresh_seed, last_refresh_date, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at, updated_at`,
		newCard.UserID, newCard.CardNumber, newCard.ExpiryDate, newCard.RefreshSeed, lastRefresh).
		Scan(&newCard.ID, &newCard.CreatedAt, &newCard.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create replacement card: %w", err)
	}
	newCard.IsActive = true

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card refresh: %w", err)
	}
	return nil
}
