package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/viridian-city/bank-service/internal/models"
	"github.com/viridian-city/bank-service/internal/request"
)

// ExecuteTransfer moves amount between two users and records the transaction,
// all in one database transaction. Rows are locked in ascending id order so
// two opposing transfers cannot deadlock. Fails with
// request.ErrInsufficientFunds or request.ErrInvalidAccount without touching
// any balance.
func (r *Repository) ExecuteTransfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, transactionType, description string) (*models.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	txn, err := r.transferTx(ctx, tx, fromUserID, toUserID, amount, transactionType, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return txn, nil
}

// transferTx applies the balance movement and transaction record inside the
// caller's transaction; the caller commits or rolls back.
func (r *Repository) transferTx(ctx context.Context, tx *sql.Tx, fromUserID, toUserID int64, amount decimal.Decimal, transactionType, description string) (*models.Transaction, error) {
	first, second := fromUserID, toUserID
	if first > second {
		first, second = second, first
	}

	balances := map[int64]decimal.Decimal{}
	for _, id := range []int64{first, second} {
		var balance decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if err == sql.ErrNoRows {
			return nil, request.ErrInvalidAccount
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		balances[id] = balance
	}

	if balances[fromUserID].LessThan(amount) {
		return nil, request.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance - $1 WHERE id = $2`, amount, fromUserID); err != nil {
		return nil, fmt.Errorf("failed to debit sender: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, toUserID); err != nil {
		return nil, fmt.Errorf("failed to credit recipient: %w", err)
	}

	txn := &models.Transaction{
		FromUserID:      fromUserID,
		ToUserID:        toUserID,
		Amount:          amount,
		TransactionType: transactionType,
		Description:     description,
		Status:          "completed",
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO transactions (from_user_id, to_user_id, amount, transaction_type, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		txn.FromUserID, txn.ToUserID, txn.Amount, txn.TransactionType, txn.Description, txn.Status).
		Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return txn, nil
}

// ApproveAndTransfer implements request.Ledger. The pending-to-approved
// transition and the balance movement share one transaction, so they commit
// or roll back together: a concurrent cancel or reject that wins the status
// race leaves the payer's balance untouched.
func (r *Repository) ApproveAndTransfer(ctx context.Context, requestID, fromUserID, toUserID int64, amount decimal.Decimal, description string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin approval: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE payment_requests SET status = $1 WHERE id = $2 AND status = $3`,
		models.RequestStatusApproved, requestID, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update payment request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return request.ErrInvalidState
	}

	if _, err := r.transferTx(ctx, tx, fromUserID, toUserID, amount, "request_payment", description); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}
	return nil
}

// ListTransactions returns a user's most recent transactions, newest first.
// Amounts are signed from the user's viewpoint: negative when the user sent
// the money, positive when they received it.
func (r *Repository) ListTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	query := `
		SELECT t.id, t.from_user_id, t.to_user_id,
		       CASE WHEN t.from_user_id = $1 THEN -t.amount ELSE t.amount END AS amount,
		       t.transaction_type, t.description, t.status, t.created_at,
		       u1.username AS from_username, u2.username AS to_username
		FROM transactions t
		LEFT JOIN users u1 ON t.from_user_id = u1.id
		LEFT JOIN users u2 ON t.to_user_id = u2.id
		WHERE t.from_user_id = $1 OR t.to_user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.TransactionType,
			&t.Description, &t.Status, &t.CreatedAt, &t.FromUsername, &t.ToUsername)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
