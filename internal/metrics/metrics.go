// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts completed peer-to-peer transfers by type.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_transfers_total",
		Help: "Total completed fund transfers",
	}, []string{"type"})

	// PaymentRequestsTotal counts payment-request lifecycle events.
	PaymentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_payment_requests_total",
		Help: "Payment request lifecycle events",
	}, []string{"event"})

	// CardRefreshesTotal counts successful card refreshes.
	CardRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bank_card_refreshes_total",
		Help: "Total successful card refreshes",
	})

	// LoginsTotal counts successful logins.
	LoginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bank_logins_total",
		Help: "Total successful logins",
	})
)
