// Package webhook posts banking events to an external endpoint. Deliveries
// are best-effort: failures are logged and never fail the triggering
// operation.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/viridian-city/bank-service/internal/config"
	"github.com/viridian-city/bank-service/internal/models"
)

// Client sends webhook notifications
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a webhook client. With no URL configured the client
// is a no-op.
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.WebhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Payload is the envelope for all webhook notifications.
type Payload struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// TransferData describes a completed transfer.
type TransferData struct {
	TransactionID int64           `json:"transaction_id"`
	FromUserID    int64           `json:"from_user_id"`
	FromUsername  string          `json:"from_username"`
	ToUserID      int64           `json:"to_user_id"`
	ToUsername    string          `json:"to_username"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// PaymentRequestData describes a payment-request lifecycle event.
type PaymentRequestData struct {
	RequestID    int64           `json:"request_id"`
	FromUserID   int64           `json:"from_user_id"`
	FromUsername string          `json:"from_username"`
	ToUserID     int64           `json:"to_user_id"`
	ToUsername   string          `json:"to_username"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	Status       string          `json:"status"`
}

// NotifyTransfer reports a completed transfer.
func (c *Client) NotifyTransfer(ctx context.Context, txn *models.Transaction) {
	c.send(ctx, "transfer.completed", TransferData{
		TransactionID: txn.ID,
		FromUserID:    txn.FromUserID,
		FromUsername:  txn.FromUsername,
		ToUserID:      txn.ToUserID,
		ToUsername:    txn.ToUsername,
		Amount:        txn.Amount,
		Description:   txn.Description,
	})
}

// NotifyPaymentRequest reports a payment-request event such as
// payment_request.created or payment_request.approved.
func (c *Client) NotifyPaymentRequest(ctx context.Context, event string, pr *models.PaymentRequest) {
	c.send(ctx, event, PaymentRequestData{
		RequestID:    pr.ID,
		FromUserID:   pr.FromUserID,
		FromUsername: pr.FromUsername,
		ToUserID:     pr.ToUserID,
		ToUsername:   pr.ToUsername,
		Amount:       pr.Amount,
		Reason:       pr.Reason,
		Status:       pr.Status,
	})
}

func (c *Client) send(ctx context.Context, event string, data interface{}) {
	if c.url == "" {
		return
	}

	payload := Payload{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: time.Now(),
		Data:      data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.log.Errorf("Failed to marshal webhook payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.log.Errorf("Failed to create webhook request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", payload.ID)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Errorf("Webhook delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.log.Errorf("Webhook delivery rejected: %s", fmt.Sprintf("status %d", resp.StatusCode))
		return
	}
	c.log.Debugf("Webhook delivered: %s (%s)", event, payload.ID)
}
