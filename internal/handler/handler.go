package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/viridian-city/bank-service/internal/card"
	"github.com/viridian-city/bank-service/internal/middleware"
	"github.com/viridian-city/bank-service/internal/repository"
	"github.com/viridian-city/bank-service/internal/request"
	"github.com/viridian-city/bank-service/internal/service"
)

// Handler exposes the service over HTTP.
type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	token, user, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

// Logout revokes the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no session")
		return
	}
	if err := h.svc.Logout(r.Context(), sessionID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the caller's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// Profile returns the caller's user record with the masked account number.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	user, masked, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":                  user,
		"masked_account_number": masked,
	})
}

// GetBalance returns the caller's balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	balance, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": balance})
}

// GetTransactions returns the caller's recent transactions.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	transactions, err := h.svc.Transactions(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

type transferRequest struct {
	To          string          `json:"to"` // username or account number
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Transfer moves money from the caller to another user.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	txn, err := h.svc.Transfer(r.Context(), userID, req.To, req.Amount, req.Description)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"transaction": txn})
}

// GetCard returns the caller's card, issuing one on first view.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	details, err := h.svc.GetCard(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// RefreshCard replaces the caller's card, subject to the 24h cooldown.
func (h *Handler) RefreshCard(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	details, err := h.svc.RefreshCard(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// ListPaymentRequests returns the caller's incoming and outgoing queues.
func (h *Handler) ListPaymentRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	listing, err := h.svc.ListPaymentRequests(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type createPaymentRequestRequest struct {
	To      string          `json:"to"` // payer: username or account number
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason"`
	Message string          `json:"message"`
}

// CreatePaymentRequest opens a request asking another user to pay the caller.
func (h *Handler) CreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req createPaymentRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.To == "" || req.Reason == "" {
		writeError(w, http.StatusBadRequest, "recipient and reason are required")
		return
	}

	pr, err := h.svc.CreatePaymentRequest(r.Context(), userID, req.To, req.Amount, req.Reason, req.Message)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"request": pr})
}

type respondRequest struct {
	Decision string `json:"decision"` // "approve" or "reject"
}

// RespondToPaymentRequest lets the payer approve or reject a request.
func (h *Handler) RespondToPaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	requestID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req respondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	decision := request.Decision(req.Decision)
	if decision != request.DecisionApprove && decision != request.DecisionReject {
		writeError(w, http.StatusBadRequest, "decision must be approve or reject")
		return
	}

	pr, err := h.svc.RespondToPaymentRequest(r.Context(), requestID, userID, decision)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"request": pr})
}

// CancelPaymentRequest lets the requester withdraw a pending request.
func (h *Handler) CancelPaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	requestID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	pr, err := h.svc.CancelPaymentRequest(r.Context(), requestID, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"request": pr})
}

// GetStatement streams the caller's statement as XML.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	doc, err := h.svc.Statement(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.xml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return err
	}
	return nil
}

// writeDomainError maps business errors to HTTP codes; anything unmapped is
// an infrastructure failure and logged as such.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var cooldown *card.CooldownError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, request.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, request.ErrNotFound),
		errors.Is(err, request.ErrInvalidAccount),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrNoActiveCard):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, request.ErrInvalidState),
		errors.Is(err, repository.ErrRefreshConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, request.ErrInvalidAmount),
		errors.Is(err, request.ErrInvalidCounterparty),
		errors.Is(err, request.ErrInsufficientFunds),
		errors.Is(err, service.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cooldown):
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":                 cooldown.Error(),
			"hours_until_refresh":   cooldown.Hours(),
			"minutes_until_refresh": cooldown.Minutes(),
		})
	default:
		h.log.Errorf("Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
