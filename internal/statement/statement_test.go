package statement

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viridian-city/bank-service/internal/models"
)

func TestBuildStatement(t *testing.T) {
	user := &models.User{
		ID:            1,
		Username:      "ash",
		AccountNumber: "1234567890",
		Balance:       decimal.NewFromFloat(950.50),
	}
	created := time.Date(2026, time.August, 20, 9, 30, 0, 0, time.UTC)
	transactions := []models.Transaction{
		{
			ID:              7,
			Amount:          decimal.NewFromInt(-50),
			TransactionType: "transfer",
			Description:     "rent",
			Status:          "completed",
			CreatedAt:       created,
			FromUsername:    "ash",
			ToUsername:      "misty",
		},
		{
			ID:              5,
			Amount:          decimal.NewFromInt(25),
			TransactionType: "request_payment",
			Description:     "Payment for: lunch",
			Status:          "completed",
			CreatedAt:       created.Add(-time.Hour),
			FromUsername:    "brock",
			ToUsername:      "ash",
		},
	}

	out, err := Build(user, transactions, time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))

	root := doc.SelectElement("Statement")
	require.NotNil(t, root)

	account := root.SelectElement("Account")
	require.NotNil(t, account)
	assert.Equal(t, "ash", account.SelectElement("Holder").Text())
	assert.Equal(t, "12****7890", account.SelectElement("Number").Text(), "account number is masked")
	assert.Equal(t, "950.50", account.SelectElement("Balance").Text())

	list := root.SelectElement("Transactions")
	require.NotNil(t, list)
	assert.Equal(t, "2", list.SelectAttrValue("count", ""))

	entries := list.SelectElements("Transaction")
	require.Len(t, entries, 2)
	assert.Equal(t, "-50.00", entries[0].SelectElement("Amount").Text())
	assert.Equal(t, "misty", entries[0].SelectElement("Counterparty").Text(),
		"outgoing entries name the recipient")
	assert.Equal(t, "brock", entries[1].SelectElement("Counterparty").Text(),
		"incoming entries name the sender")
}

func TestBuildEmptyStatement(t *testing.T) {
	user := &models.User{Username: "ash", AccountNumber: "42", Balance: decimal.Zero}
	out, err := Build(user, nil, time.Now())
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	list := doc.SelectElement("Statement").SelectElement("Transactions")
	assert.Equal(t, "0", list.SelectAttrValue("count", ""))
	assert.Empty(t, list.SelectElements("Transaction"))
}
