package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/viridian-city/bank-service/internal/card"
	"github.com/viridian-city/bank-service/internal/config"
	"github.com/viridian-city/bank-service/internal/integrations/webhook"
	"github.com/viridian-city/bank-service/internal/metrics"
	"github.com/viridian-city/bank-service/internal/models"
	"github.com/viridian-city/bank-service/internal/repository"
	"github.com/viridian-city/bank-service/internal/request"
	"github.com/viridian-city/bank-service/internal/statement"
	"github.com/viridian-city/bank-service/internal/utils/email"
)

// Business errors surfaced by the auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// New users start with a small demo balance.
var initialBalance = decimal.NewFromInt(1000)

const (
	tokenTTL            = 24 * time.Hour
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Service handles business logic
type Service struct {
	repo      *repository.Repository
	lifecycle *request.Lifecycle
	log       *logrus.Logger
	config    *config.Config
	webhooks  *webhook.Client
	mailer    *email.Sender
}

// NewService initializes a new service. The repository backs the
// payment-request lifecycle as its store, ledger and account resolver.
func NewService(repo *repository.Repository, log *logrus.Logger, cfg *config.Config, webhooks *webhook.Client, mailer *email.Sender) *Service {
	return &Service{
		repo:      repo,
		lifecycle: request.NewLifecycle(repo, repo, repo),
		log:       log,
		config:    cfg,
		webhooks:  webhooks,
		mailer:    mailer,
	}
}

// Register creates a new user with a hashed password and a fresh account
// number.
func (s *Service) Register(ctx context.Context, username, emailAddr, password string) (*models.User, error) {
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	accountNumber, err := s.generateAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:      username,
		Email:         emailAddr,
		PasswordHash:  string(hashedPassword),
		AccountNumber: accountNumber,
		Balance:       initialBalance,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s (account %s)", user.Username, card.MaskAccountNumber(user.AccountNumber))
	return user, nil
}

// generateAccountNumber draws random 10-digit account numbers until an
// unused one is found.
func (s *Service) generateAccountNumber(ctx context.Context) (string, error) {
	for {
		buf := make([]byte, 10)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate account number: %w", err)
		}
		digits := make([]byte, 10)
		for i, b := range buf {
			digits[i] = '0' + b%10
		}
		accountNumber := string(digits)

		exists, err := s.repo.AccountNumberExists(ctx, accountNumber)
		if err != nil {
			return "", err
		}
		if !exists {
			return accountNumber, nil
		}
	}
}

// Login authenticates a user and returns a JWT token backed by a session
// row; deleting the session revokes the token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	expiresAt := time.Now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		ID:        sessionID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	session := &models.Session{UserID: user.ID, Token: sessionID, ExpiresAt: expiresAt}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return "", nil, err
	}

	metrics.LoginsTotal.Inc()
	s.log.Infof("User logged in: %s", user.Username)
	return tokenString, user, nil
}

// Logout revokes the session behind a token.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	s.log.Infof("Session revoked: %s", sessionID)
	return nil
}

// ChangePassword replaces the user's password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrPasswordTooShort
	}
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}
	s.log.Infof("Password changed for user %d", userID)
	return nil
}

// Profile returns the user with the masked account number display form.
func (s *Service) Profile(ctx context.Context, userID int64) (*models.User, string, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return user, card.MaskAccountNumber(user.AccountNumber), nil
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Transactions returns the user's recent history, newest first.
func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.ListTransactions(ctx, userID, limit)
}

// Transfer moves money from the user to a recipient addressed by username or
// account number.
func (s *Service) Transfer(ctx context.Context, userID int64, to string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, request.ErrInvalidAmount
	}
	recipient, err := s.repo.Resolve(ctx, to)
	if err != nil {
		return nil, err
	}
	if recipient.ID == userID {
		return nil, request.ErrInvalidCounterparty
	}
	sender, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	txn, err := s.repo.ExecuteTransfer(ctx, userID, recipient.ID, amount, "transfer", description)
	if err != nil {
		return nil, err
	}
	txn.FromUsername = sender.Username
	txn.ToUsername = recipient.Username

	metrics.TransfersTotal.WithLabelValues("transfer").Inc()
	s.log.Infof("Transfer completed: %s -> %s, amount %s", sender.Username, recipient.Username, amount.StringFixed(2))

	s.webhooks.NotifyTransfer(ctx, txn)
	s.notifyTransferByEmail(ctx, sender, recipient, amount)
	return txn, nil
}

func (s *Service) notifyTransferByEmail(ctx context.Context, sender, recipient *models.User, amount decimal.Decimal) {
	if !s.config.EmailEnabled() {
		return
	}
	senderBalance, err := s.repo.GetBalance(ctx, sender.ID)
	if err == nil {
		_ = s.mailer.SendTransferNotice(sender.Email, sender.Username, amount, recipient.Username, false, senderBalance)
	}
	recipientBalance, err := s.repo.GetBalance(ctx, recipient.ID)
	if err == nil {
		_ = s.mailer.SendTransferNotice(recipient.Email, recipient.Username, amount, sender.Username, true, recipientBalance)
	}
}

// CreatePaymentRequest opens a pending request asking payerIdentifier to pay.
func (s *Service) CreatePaymentRequest(ctx context.Context, requesterID int64, payerIdentifier string, amount decimal.Decimal, reason, message string) (*models.PaymentRequest, error) {
	pr, err := s.lifecycle.Create(ctx, requesterID, payerIdentifier, amount, reason, message)
	if err != nil {
		return nil, err
	}
	s.attachUsernames(ctx, pr)

	metrics.PaymentRequestsTotal.WithLabelValues("created").Inc()
	s.log.Infof("Payment request %d created: %s requests %s from %s",
		pr.ID, pr.FromUsername, pr.Amount.StringFixed(2), pr.ToUsername)

	s.webhooks.NotifyPaymentRequest(ctx, "payment_request.created", pr)
	if s.config.EmailEnabled() {
		if payer, err := s.repo.FindUserByID(ctx, pr.ToUserID); err == nil {
			_ = s.mailer.SendPaymentRequestNotice(payer.Email, payer.Username, pr.Amount, pr.FromUsername, pr.Reason, models.RequestStatusPending)
		}
	}
	return pr, nil
}

// RespondToPaymentRequest lets the payer approve or reject an incoming
// request. Approval debits the payer and credits the requester atomically;
// on a failed transfer the request stays pending.
func (s *Service) RespondToPaymentRequest(ctx context.Context, requestID, userID int64, decision request.Decision) (*models.PaymentRequest, error) {
	pr, err := s.lifecycle.Respond(ctx, requestID, userID, decision)
	if err != nil {
		return nil, err
	}
	s.attachUsernames(ctx, pr)

	metrics.PaymentRequestsTotal.WithLabelValues(pr.Status).Inc()
	if pr.Status == models.RequestStatusApproved {
		metrics.TransfersTotal.WithLabelValues("request_payment").Inc()
	}
	s.log.Infof("Payment request %d %s by %s", pr.ID, pr.Status, pr.ToUsername)

	s.webhooks.NotifyPaymentRequest(ctx, "payment_request."+pr.Status, pr)
	if s.config.EmailEnabled() {
		if requester, err := s.repo.FindUserByID(ctx, pr.FromUserID); err == nil {
			_ = s.mailer.SendPaymentRequestNotice(requester.Email, requester.Username, pr.Amount, pr.ToUsername, pr.Reason, pr.Status)
		}
	}
	return pr, nil
}

// CancelPaymentRequest lets the requester withdraw a pending request.
func (s *Service) CancelPaymentRequest(ctx context.Context, requestID, userID int64) (*models.PaymentRequest, error) {
	pr, err := s.lifecycle.Cancel(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	s.attachUsernames(ctx, pr)

	metrics.PaymentRequestsTotal.WithLabelValues("cancelled").Inc()
	s.log.Infof("Payment request %d cancelled by %s", pr.ID, pr.FromUsername)

	s.webhooks.NotifyPaymentRequest(ctx, "payment_request.cancelled", pr)
	return pr, nil
}

// ListPaymentRequests returns the incoming/outgoing queues with pending
// counts for the user.
func (s *Service) ListPaymentRequests(ctx context.Context, userID int64) (*request.Listing, error) {
	return s.lifecycle.ListFor(ctx, userID)
}

func (s *Service) attachUsernames(ctx context.Context, pr *models.PaymentRequest) {
	if pr.FromUsername == "" {
		if u, err := s.repo.FindUserByID(ctx, pr.FromUserID); err == nil {
			pr.FromUsername = u.Username
		}
	}
	if pr.ToUsername == "" {
		if u, err := s.repo.FindUserByID(ctx, pr.ToUserID); err == nil {
			pr.ToUsername = u.Username
		}
	}
}

// CardDetails is the card view returned to the client.
type CardDetails struct {
	Card            *models.Card `json:"card"`
	FormattedNumber string       `json:"formatted_number"`
	CardHolder      string       `json:"card_holder"`
	CanRefresh      bool         `json:"can_refresh"`
	HoursUntil      int          `json:"hours_until_refresh"`
	MinutesUntil    int          `json:"minutes_until_refresh"`
}

// GetCard returns the user's active card, issuing one on first view. The
// expiry is recomputed on every view; the number is stable until a refresh.
func (s *Service) GetCard(ctx context.Context, userID int64) (*CardDetails, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.GetActiveCard(ctx, userID)
	if errors.Is(err, repository.ErrNoActiveCard) {
		active = &models.Card{
			UserID:      userID,
			CardNumber:  card.Derive(user.AccountNumber, 0),
			ExpiryDate:  card.ExpiryDate(time.Now()),
			RefreshSeed: 0,
		}
		if err := s.repo.CreateCard(ctx, active); err != nil {
			return nil, err
		}
		s.log.Infof("Card issued for user %d", userID)
	} else if err != nil {
		return nil, err
	}

	return s.cardDetails(user, active), nil
}

// RefreshCard replaces the user's card with the next derivation, subject to
// the 24-hour cooldown. Fails with *card.CooldownError while cooling down.
func (s *Service) RefreshCard(ctx context.Context, userID int64) (*CardDetails, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.GetActiveCard(ctx, userID)
	if err != nil {
		return nil, err
	}

	state := card.RefreshState{Seed: active.RefreshSeed, LastRefresh: active.LastRefreshDate}
	next, err := card.Refresh(state, time.Now())
	if err != nil {
		return nil, err
	}

	replacement := &models.Card{
		UserID:          userID,
		CardNumber:      card.Derive(user.AccountNumber, next.Seed),
		ExpiryDate:      card.ExpiryDate(time.Now()),
		RefreshSeed:     next.Seed,
		LastRefreshDate: next.LastRefresh,
	}
	if err := s.repo.ReplaceCard(ctx, active.ID, replacement); err != nil {
		return nil, err
	}

	metrics.CardRefreshesTotal.Inc()
	s.log.Infof("Card refreshed for user %d (seed %d)", userID, next.Seed)
	return s.cardDetails(user, replacement), nil
}

func (s *Service) cardDetails(user *models.User, c *models.Card) *CardDetails {
	state := card.RefreshState{Seed: c.RefreshSeed, LastRefresh: c.LastRefreshDate}
	now := time.Now()
	details := &CardDetails{
		Card:            c,
		FormattedNumber: card.Format(c.CardNumber),
		CardHolder:      strings.ToUpper(user.Username),
		CanRefresh:      card.CanRefresh(state, now),
	}
	if remaining := card.TimeUntilRefresh(state, now); remaining > 0 {
		cd := &card.CooldownError{Remaining: remaining}
		details.HoursUntil = cd.Hours()
		details.MinutesUntil = cd.Minutes()
	}
	return details
}

// Statement renders the user's account statement as an XML document.
func (s *Service) Statement(ctx context.Context, userID int64) ([]byte, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.repo.ListTransactions(ctx, userID, maxHistoryLimit)
	if err != nil {
		return nil, err
	}
	return statement.Build(user, transactions, time.Now())
}

// CleanupSessions removes expired sessions; wired to the cron scheduler.
func (s *Service) CleanupSessions(ctx context.Context) {
	n, err := s.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		s.log.Errorf("Session cleanup failed: %v", err)
		return
	}
	if n > 0 {
		s.log.Infof("Session cleanup removed %d expired sessions", n)
	}
}
