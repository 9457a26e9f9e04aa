// Package request implements the payment-request lifecycle: a pending
// request between a requester and a payer that transitions exactly once to
// approved, rejected or cancelled.
package request

import "errors"

// Domain errors. Handlers map these to HTTP status codes; anything else
// coming out of this package is an infrastructure failure.
var (
	// ErrInvalidAmount means the requested amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidCounterparty means the payer does not resolve to a known
	// account, or the requester is asking themselves to pay.
	ErrInvalidCounterparty = errors.New("invalid counterparty")

	// ErrNotAuthorized means the acting user is not the party allowed to
	// perform the operation (payer for respond, requester for cancel).
	ErrNotAuthorized = errors.New("not authorized for this request")

	// ErrInvalidState means the request already left the pending state.
	ErrInvalidState = errors.New("request is not pending")

	// ErrNotFound means no request exists with the given id.
	ErrNotFound = errors.New("payment request not found")

	// ErrInsufficientFunds is surfaced by the ledger when the payer cannot
	// cover an approval.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAccount is returned by account resolution when the
	// identifier matches no account.
	ErrInvalidAccount = errors.New("account not found")
)
