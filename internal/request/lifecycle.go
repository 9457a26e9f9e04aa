package request

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viridian-city/bank-service/internal/models"
)

// Decision is a payer's answer to an incoming request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Store holds payment requests. SetStatus must apply the transition
// atomically against the current status (compare-and-set), failing with
// ErrInvalidState when the request is no longer in the expected state, so
// concurrent respond/cancel calls cannot both succeed.
type Store interface {
	Insert(ctx context.Context, pr *models.PaymentRequest) error
	Get(ctx context.Context, id int64) (*models.PaymentRequest, error)
	SetStatus(ctx context.Context, id int64, from, to string) error
	ListIncoming(ctx context.Context, payerID int64) ([]models.PaymentRequest, error)
	ListOutgoing(ctx context.Context, requesterID int64) ([]models.PaymentRequest, error)
}

// Ledger settles approved requests against user balances. ApproveAndTransfer
// atomically flips the request from pending to approved and moves amount from
// the payer to the requester: either both happen or neither does. It fails
// with ErrInvalidState when the request is no longer pending, or with
// ErrInsufficientFunds / ErrInvalidAccount, in every case without moving
// funds or changing the status.
type Ledger interface {
	ApproveAndTransfer(ctx context.Context, requestID, fromUserID, toUserID int64, amount decimal.Decimal, description string) error
}

// AccountStore resolves account identifiers to users. Resolve fails with
// ErrInvalidAccount when no account matches.
type AccountStore interface {
	Resolve(ctx context.Context, identifier string) (*models.User, error)
}

// Lifecycle owns the payment-request state machine.
type Lifecycle struct {
	store    Store
	ledger   Ledger
	accounts AccountStore
}

// NewLifecycle wires the lifecycle to its collaborators.
func NewLifecycle(store Store, ledger Ledger, accounts AccountStore) *Lifecycle {
	return &Lifecycle{store: store, ledger: ledger, accounts: accounts}
}

// Listing is the per-user view of the request queues, newest first.
type Listing struct {
	Incoming        []models.PaymentRequest `json:"incoming"`
	Outgoing        []models.PaymentRequest `json:"outgoing"`
	PendingIncoming int                     `json:"pending_incoming"`
	PendingOutgoing int                     `json:"pending_outgoing"`
}

// Create opens a pending request: the requester asks the holder of
// payerIdentifier (username or account number) to pay amount.
func (l *Lifecycle) Create(ctx context.Context, requesterID int64, payerIdentifier string, amount decimal.Decimal, reason, message string) (*models.PaymentRequest, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	payer, err := l.accounts.Resolve(ctx, payerIdentifier)
	if err != nil {
		if errors.Is(err, ErrInvalidAccount) {
			return nil, ErrInvalidCounterparty
		}
		return nil, fmt.Errorf("failed to resolve payer: %w", err)
	}
	if payer.ID == requesterID {
		return nil, ErrInvalidCounterparty
	}

	pr := &models.PaymentRequest{
		FromUserID: requesterID,
		ToUserID:   payer.ID,
		Amount:     amount,
		Reason:     reason,
		Message:    message,
		Status:     models.RequestStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := l.store.Insert(ctx, pr); err != nil {
		return nil, fmt.Errorf("failed to store payment request: %w", err)
	}
	return pr, nil
}

// Respond lets the payer approve or reject a pending request. Approval moves
// the funds from payer to requester atomically with the status flip; if the
// settlement fails the request stays pending and the ledger error is
// returned.
func (l *Lifecycle) Respond(ctx context.Context, requestID, actingUserID int64, decision Decision) (*models.PaymentRequest, error) {
	pr, err := l.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pr.ToUserID != actingUserID {
		return nil, ErrNotAuthorized
	}
	if pr.Status != models.RequestStatusPending {
		return nil, ErrInvalidState
	}

	switch decision {
	case DecisionReject:
		if err := l.store.SetStatus(ctx, pr.ID, models.RequestStatusPending, models.RequestStatusRejected); err != nil {
			return nil, err
		}
		pr.Status = models.RequestStatusRejected
		return pr, nil

	case DecisionApprove:
		desc := "Payment for: " + pr.Reason
		if err := l.ledger.ApproveAndTransfer(ctx, pr.ID, pr.ToUserID, pr.FromUserID, pr.Amount, desc); err != nil {
			return nil, err
		}
		pr.Status = models.RequestStatusApproved
		return pr, nil

	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
}

// Cancel lets the requester withdraw a pending request. No funds move.
func (l *Lifecycle) Cancel(ctx context.Context, requestID, actingUserID int64) (*models.PaymentRequest, error) {
	pr, err := l.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pr.FromUserID != actingUserID {
		return nil, ErrNotAuthorized
	}
	if pr.Status != models.RequestStatusPending {
		return nil, ErrInvalidState
	}

	if err := l.store.SetStatus(ctx, pr.ID, models.RequestStatusPending, models.RequestStatusCancelled); err != nil {
		return nil, err
	}
	pr.Status = models.RequestStatusCancelled
	return pr, nil
}

// ListFor returns the incoming (user pays) and outgoing (user is owed)
// queues, newest-created first with ascending-id tie-break, plus the pending
// counts shown on the queue badges.
func (l *Lifecycle) ListFor(ctx context.Context, userID int64) (*Listing, error) {
	incoming, err := l.store.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}
	outgoing, err := l.store.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing requests: %w", err)
	}

	sortNewestFirst(incoming)
	sortNewestFirst(outgoing)

	return &Listing{
		Incoming:        incoming,
		Outgoing:        outgoing,
		PendingIncoming: countPending(incoming),
		PendingOutgoing: countPending(outgoing),
	}, nil
}

func sortNewestFirst(requests []models.PaymentRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}

func countPending(requests []models.PaymentRequest) int {
	n := 0
	for _, pr := range requests {
		if pr.Status == models.RequestStatusPending {
			n++
		}
	}
	return n
}
