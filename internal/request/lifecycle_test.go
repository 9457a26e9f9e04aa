package request

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viridian-city/bank-service/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*models.PaymentRequest
}

func newMemStore() *memStore {
	return &memStore{requests: make(map[int64]*models.PaymentRequest)}
}

func (s *memStore) Insert(_ context.Context, pr *models.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	pr.ID = s.nextID
	cp := *pr
	s.requests[pr.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id int64) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

func (s *memStore) SetStatus(_ context.Context, id int64, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	if pr.Status != from {
		return ErrInvalidState
	}
	pr.Status = to
	return nil
}

func (s *memStore) ListIncoming(_ context.Context, payerID int64) ([]models.PaymentRequest, error) {
	return s.list(func(pr *models.PaymentRequest) bool { return pr.ToUserID == payerID }), nil
}

func (s *memStore) ListOutgoing(_ context.Context, requesterID int64) ([]models.PaymentRequest, error) {
	return s.list(func(pr *models.PaymentRequest) bool { return pr.FromUserID == requesterID }), nil
}

func (s *memStore) list(match func(*models.PaymentRequest) bool) []models.PaymentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentRequest
	for _, pr := range s.requests {
		if match(pr) {
			out = append(out, *pr)
		}
	}
	return out
}

type memLedger struct {
	mu       sync.Mutex
	store    *memStore
	balances map[int64]decimal.Decimal
	lastDesc string

	// beforeApprove, when set, runs before the settlement is applied. Lets
	// tests interleave a competing transition mid-approval.
	beforeApprove func()
}

func newMemLedger(store *memStore, balances map[int64]decimal.Decimal) *memLedger {
	return &memLedger{store: store, balances: balances}
}

func (l *memLedger) ApproveAndTransfer(ctx context.Context, requestID, from, to int64, amount decimal.Decimal, desc string) error {
	if l.beforeApprove != nil {
		l.beforeApprove()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from].LessThan(amount) {
		return ErrInsufficientFunds
	}
	if err := l.store.SetStatus(ctx, requestID, models.RequestStatusPending, models.RequestStatusApproved); err != nil {
		return err
	}
	l.balances[from] = l.balances[from].Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	l.lastDesc = desc
	return nil
}

func (l *memLedger) balance(id int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

type memAccounts struct {
	users map[string]*models.User
}

func (a *memAccounts) Resolve(_ context.Context, identifier string) (*models.User, error) {
	u, ok := a.users[identifier]
	if !ok {
		return nil, ErrInvalidAccount
	}
	return u, nil
}

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
)

func fixture(balances map[int64]decimal.Decimal) (*Lifecycle, *memStore, *memLedger) {
	if balances == nil {
		balances = map[int64]decimal.Decimal{
			alice: decimal.NewFromInt(1000),
			bob:   decimal.NewFromInt(1000),
			carol: decimal.NewFromInt(1000),
		}
	}
	store := newMemStore()
	ledger := newMemLedger(store, balances)
	accounts := &memAccounts{users: map[string]*models.User{
		"1111111111": {ID: alice, Username: "alice", AccountNumber: "1111111111"},
		"2222222222": {ID: bob, Username: "bob", AccountNumber: "2222222222"},
		"3333333333": {ID: carol, Username: "carol", AccountNumber: "3333333333"},
	}}
	return NewLifecycle(store, ledger, accounts), store, ledger
}

func TestCreatePendingRequest(t *testing.T) {
	lc, _, _ := fixture(nil)
	ctx := context.Background()

	pr, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(50), "lunch", "thanks!")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, pr.Status)
	assert.Equal(t, alice, pr.FromUserID)
	assert.Equal(t, bob, pr.ToUserID)
	assert.NotZero(t, pr.ID)

	// Visible as incoming to the payer and outgoing to the requester.
	bobView, err := lc.ListFor(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobView.Incoming, 1)
	assert.Empty(t, bobView.Outgoing)
	assert.Equal(t, 1, bobView.PendingIncoming)

	aliceView, err := lc.ListFor(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceView.Outgoing, 1)
	assert.Empty(t, aliceView.Incoming)
	assert.Equal(t, 1, aliceView.PendingOutgoing)
}

func TestCreateInvalidAmount(t *testing.T) {
	lc, _, _ := fixture(nil)
	ctx := context.Background()

	_, err := lc.Create(ctx, alice, "2222222222", decimal.Zero, "x", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(-5), "x", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateInvalidCounterparty(t *testing.T) {
	lc, _, _ := fixture(nil)
	ctx := context.Background()

	_, err := lc.Create(ctx, alice, "0000000000", decimal.NewFromInt(10), "x", "")
	assert.ErrorIs(t, err, ErrInvalidCounterparty)

	// Requesting money from yourself.
	_, err = lc.Create(ctx, alice, "1111111111", decimal.NewFromInt(10), "x", "")
	assert.ErrorIs(t, err, ErrInvalidCounterparty)
}

func TestRespondAuthorization(t *testing.T) {
	lc, _, _ := fixture(nil)
	ctx := context.Background()

	pr, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(10), "x", "")
	require.NoError(t, err)

	// Neither the requester nor a third party may respond.
	_, err = lc.Respond(ctx, pr.ID, alice, DecisionApprove)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = lc.Respond(ctx, pr.ID, carol, DecisionReject)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCancelAuthorization(t *testing.T) {
	lc, _, _ := fixture(nil)
	ctx := context.Background()

	pr, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(10), "x", "")
	require.NoError(t, err)

	_, err = lc.Cancel(ctx, pr.ID, bob)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = lc.Cancel(ctx, pr.ID, carol)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	got, err := lc.Cancel(ctx, pr.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, got.Status)
}

// The spec scenario: alice requests 50 from bob, bob approves, funds move
// from bob to alice, and a late cancel by alice fails.
func TestApproveMovesFundsThenTerminal(t *testing.T) {
	lc, store, ledger := fixture(nil)
	ctx := context.Background()

	pr, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(50), "rent", "")
	require.NoError(t, err)

	got, err := lc.Respond(ctx, pr.ID, bob, DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, got.Status)
	assert.True(t, ledger.balance(bob).Equal(decimal.NewFromInt(950)), "payer debited")
	assert.True(t, ledger.balance(alice).Equal(decimal.NewFromInt(1050)), "requester credited")
	assert.Equal(t, "Payment for: rent", ledger.lastDesc)

	_, err = lc.Cancel(ctx, pr.ID, alice)
	assert.ErrorIs(t, err, ErrInvalidState)

	stored, err := store.Get(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, stored.Status)
}

func TestApproveInsufficientFundsStaysPending(t *testing.T) {
	lc, store, ledger := fixture(map[int64]decimal.Decimal{
		alice: decimal.NewFromInt(0),
		bob:   decimal.NewFromInt(10),
	})
	ctx := context.Background()

	pr, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(50), "rent", "")
	require.NoError(t, err)

	_, err = lc.Respond(ctx, pr.ID, bob, DecisionApprove)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing moved, request still pending and answerable later.
	assert.True(t, ledger.balance(bob).Equal(decimal.NewFromInt(10)))
	stored, err := store.Get(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, stored.Status)
}

// A cancel that commits while an approval is in flight must win cleanly:
// the approval fails with ErrInvalidState and the payer is never debited.
func TestApproveLosesRaceToCancelWithoutMovingFunds(t *testing.T) {
	lc, store, ledger := fixture(nil)
	ctx := context.Background()

	pr, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(50), "rent", "")
	require.NoError(t, err)

	// The requester's cancel lands after the payer's authorization check but
	// before the settlement applies.
	ledger.beforeApprove = func() {
		_, err := lc.Cancel(ctx, pr.ID, alice)
		require.NoError(t, err)
	}

	_, err = lc.Respond(ctx, pr.ID, bob, DecisionApprove)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.True(t, ledger.balance(bob).Equal(decimal.NewFromInt(1000)), "payer not debited")
	assert.True(t, ledger.balance(alice).Equal(decimal.NewFromInt(1000)), "requester not credited")
	stored, err := store.Get(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, stored.Status)
}

func TestRejectIsTerminal(t *testing.T) {
	lc, _, ledger := fixture(nil)
	ctx := context.Background()

	pr, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(25), "x", "")
	require.NoError(t, err)

	got, err := lc.Respond(ctx, pr.ID, bob, DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, got.Status)
	assert.True(t, ledger.balance(bob).Equal(decimal.NewFromInt(1000)), "reject moves no funds")

	// Once terminal, no further transitions.
	_, err = lc.Respond(ctx, pr.ID, bob, DecisionApprove)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = lc.Cancel(ctx, pr.ID, alice)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRespondUnknownRequest(t *testing.T) {
	lc, _, _ := fixture(nil)
	_, err := lc.Respond(context.Background(), 999, bob, DecisionApprove)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdering(t *testing.T) {
	lc, store, _ := fixture(nil)
	ctx := context.Background()

	base := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	mk := func(created time.Time) int64 {
		pr := &models.PaymentRequest{
			FromUserID: alice,
			ToUserID:   bob,
			Amount:     decimal.NewFromInt(1),
			Reason:     "x",
			Status:     models.RequestStatusPending,
			CreatedAt:  created,
		}
		require.NoError(t, store.Insert(ctx, pr))
		return pr.ID
	}

	oldest := mk(base)
	tieA := mk(base.Add(time.Hour))
	tieB := mk(base.Add(time.Hour))
	newest := mk(base.Add(2 * time.Hour))

	view, err := lc.ListFor(ctx, bob)
	require.NoError(t, err)
	require.Len(t, view.Incoming, 4)

	ids := []int64{view.Incoming[0].ID, view.Incoming[1].ID, view.Incoming[2].ID, view.Incoming[3].ID}
	assert.Equal(t, []int64{newest, tieA, tieB, oldest}, ids,
		"newest first, equal timestamps ordered by ascending id")
}

func TestPendingCountsExcludeTerminal(t *testing.T) {
	lc, _, _ := fixture(nil)
	ctx := context.Background()

	first, err := lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(5), "a", "")
	require.NoError(t, err)
	_, err = lc.Create(ctx, alice, "2222222222", decimal.NewFromInt(5), "b", "")
	require.NoError(t, err)

	_, err = lc.Respond(ctx, first.ID, bob, DecisionReject)
	require.NoError(t, err)

	view, err := lc.ListFor(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, view.Incoming, 2, "terminal requests stay listed")
	assert.Equal(t, 1, view.PendingIncoming, "but only pending ones are counted")
}
