// Package statement renders an account statement as an XML document.
package statement

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/viridian-city/bank-service/internal/card"
	"github.com/viridian-city/bank-service/internal/models"
)

// Build produces the XML statement for a user: account summary (with the
// account number masked the same way the dashboard shows it) followed by the
// transaction history, newest first as supplied.
func Build(user *models.User, transactions []models.Transaction, generatedAt time.Time) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Statement")
	root.CreateAttr("generatedAt", generatedAt.Format(time.RFC3339))

	account := root.CreateElement("Account")
	account.CreateElement("Holder").SetText(user.Username)
	account.CreateElement("Number").SetText(card.MaskAccountNumber(user.AccountNumber))
	account.CreateElement("Balance").SetText(user.Balance.StringFixed(2))

	list := root.CreateElement("Transactions")
	list.CreateAttr("count", fmt.Sprintf("%d", len(transactions)))
	for _, t := range transactions {
		e := list.CreateElement("Transaction")
		e.CreateAttr("id", fmt.Sprintf("%d", t.ID))
		e.CreateElement("Date").SetText(t.CreatedAt.Format(time.RFC3339))
		e.CreateElement("Type").SetText(t.TransactionType)
		e.CreateElement("Amount").SetText(t.Amount.StringFixed(2))
		e.CreateElement("Description").SetText(t.Description)
		e.CreateElement("Status").SetText(t.Status)
		counterparty := e.CreateElement("Counterparty")
		if t.Amount.Sign() < 0 {
			counterparty.SetText(t.ToUsername)
		} else {
			counterparty.SetText(t.FromUsername)
		}
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize statement: %w", err)
	}
	return out, nil
}
