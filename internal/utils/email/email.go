package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/viridian-city/bank-service/internal/config"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendTransferNotice notifies a user about money sent or received.
func (s *Sender) SendTransferNotice(to, username string, amount decimal.Decimal, counterparty string, received bool, balance decimal.Decimal) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	if received {
		e.Subject = "Money Received"
	} else {
		e.Subject = "Transfer Sent"
	}

	body := fmt.Sprintf("Dear %s,\n\n", username)
	if received {
		body += fmt.Sprintf(
			"You received %s from %s.\n"+
				"Transaction time: %s\n"+
				"Current balance: %s\n",
			amount.StringFixed(2), counterparty, time.Now().Format("2006-01-02 15:04:05"), balance.StringFixed(2),
		)
	} else {
		body += fmt.Sprintf(
			"Your transfer of %s to %s has been completed.\n"+
				"Transaction time: %s\n"+
				"Current balance: %s\n",
			amount.StringFixed(2), counterparty, time.Now().Format("2006-01-02 15:04:05"), balance.StringFixed(2),
		)
	}
	body += "\nBest regards,\nViridian City Bank"
	e.Text = []byte(body)

	return s.send(e)
}

// SendPaymentRequestNotice notifies the payer about a new incoming payment
// request, or the requester about its outcome.
func (s *Sender) SendPaymentRequestNotice(to, username string, amount decimal.Decimal, counterparty, reason, status string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}

	body := fmt.Sprintf("Dear %s,\n\n", username)
	switch status {
	case "pending":
		e.Subject = "New Payment Request"
		body += fmt.Sprintf(
			"%s requests %s from you.\n"+
				"Reason: %s\n"+
				"Log in to approve or reject the request.\n",
			counterparty, amount.StringFixed(2), reason,
		)
	case "approved":
		e.Subject = "Payment Request Approved"
		body += fmt.Sprintf(
			"%s approved your request for %s (%s). The money is on your account.\n",
			counterparty, amount.StringFixed(2), reason,
		)
	default:
		e.Subject = fmt.Sprintf("Payment Request %s", status)
		body += fmt.Sprintf(
			"Your payment request for %s (%s) involving %s is now %s.\n",
			amount.StringFixed(2), reason, counterparty, status,
		)
	}
	body += "\nBest regards,\nViridian City Bank"
	e.Text = []byte(body)

	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}
