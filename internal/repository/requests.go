package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viridian-city/bank-service/internal/models"
	"github.com/viridian-city/bank-service/internal/request"
)

// The repository implements request.Store and request.AccountStore; together
// with ApproveAndTransfer (request.Ledger) it is the authoritative backing
// for the payment-request lifecycle.

// Insert stores a new payment request and fills its id and creation time.
func (r *Repository) Insert(ctx context.Context, pr *models.PaymentRequest) error {
	query := `
		INSERT INTO payment_requests (from_user_id, to_user_id, amount, reason, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		pr.FromUserID, pr.ToUserID, pr.Amount, pr.Reason, pr.Message, pr.Status).
		Scan(&pr.ID, &pr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment request: %w", err)
	}
	return nil
}

// Get retrieves a payment request by id.
func (r *Repository) Get(ctx context.Context, id int64) (*models.PaymentRequest, error) {
	pr := &models.PaymentRequest{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, from_user_id, to_user_id, amount, reason, message, status, created_at
		FROM payment_requests WHERE id = $1`, id).
		Scan(&pr.ID, &pr.FromUserID, &pr.ToUserID, &pr.Amount, &pr.Reason,
			&pr.Message, &pr.Status, &pr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, request.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return pr, nil
}

// SetStatus transitions a request from one status to another as a single
// conditional update. Concurrent transitions race on the WHERE clause, so
// only the first wins; the loser gets request.ErrInvalidState.
func (r *Repository) SetStatus(ctx context.Context, id int64, from, to string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_requests SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update payment request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM payment_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check payment request: %w", err)
		}
		if !exists {
			return request.ErrNotFound
		}
		return request.ErrInvalidState
	}
	return nil
}

// ListIncoming returns requests where the user is the payer, with the
// requester's username attached for display.
func (r *Repository) ListIncoming(ctx context.Context, payerID int64) ([]models.PaymentRequest, error) {
	query := `
		SELECT pr.id, pr.from_user_id, pr.to_user_id, pr.amount, pr.reason,
		       pr.message, pr.status, pr.created_at, u.username AS from_username
		FROM payment_requests pr
		JOIN users u ON pr.from_user_id = u.id
		WHERE pr.to_user_id = $1
		ORDER BY pr.created_at DESC, pr.id ASC`
	return r.listRequests(ctx, query, payerID, true)
}

// ListOutgoing returns requests where the user is the requester, with the
// payer's username attached for display.
func (r *Repository) ListOutgoing(ctx context.Context, requesterID int64) ([]models.PaymentRequest, error) {
	query := `
		SELECT pr.id, pr.from_user_id, pr.to_user_id, pr.amount, pr.reason,
		       pr.message, pr.status, pr.created_at, u.username AS to_username
		FROM payment_requests pr
		JOIN users u ON pr.to_user_id = u.id
		WHERE pr.from_user_id = $1
		ORDER BY pr.created_at DESC, pr.id ASC`
	return r.listRequests(ctx, query, requesterID, false)
}

func (r *Repository) listRequests(ctx context.Context, query string, userID int64, incoming bool) ([]models.PaymentRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	defer rows.Close()

	var requests []models.PaymentRequest
	for rows.Next() {
		var pr models.PaymentRequest
		var username string
		err := rows.Scan(&pr.ID, &pr.FromUserID, &pr.ToUserID, &pr.Amount, &pr.Reason,
			&pr.Message, &pr.Status, &pr.CreatedAt, &username)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		if incoming {
			pr.FromUsername = username
		} else {
			pr.ToUsername = username
		}
		requests = append(requests, pr)
	}
	return requests, rows.Err()
}

// Resolve implements request.AccountStore: an identifier matches a user by
// account number or by username.
func (r *Repository) Resolve(ctx context.Context, identifier string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE account_number = $1 OR username = $1`, identifier)
	user, err := r.scanUser(row)
	if err == ErrUserNotFound {
		return nil, request.ErrInvalidAccount
	}
	return user, err
}
