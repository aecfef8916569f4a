package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsSubmittedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "transactions_submitted_total",
			Help:      "Total sale submissions.",
		},
		[]string{"payment_method", "status"}, // status: "created", "invalid_cart", "insufficient_stock", "gateway_error", "error"
	)

	paymentTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "payment_status_transitions_total",
			Help:      "Applied payment-status transitions.",
		},
		[]string{"from", "to", "source"}, // source: "sync" or "callback"
	)

	stockReleasesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "stock_releases_total",
			Help:      "Transactions whose reserved stock was returned after a failed payment.",
		},
	)

	gatewayRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pos",
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of outbound payment-gateway requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"}, // "create_session", "fetch_status"
	)
)
