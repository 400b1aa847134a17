package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "route"})

	MovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_movements_total",
		Help: "Movement registrations, labeled by kind and outcome error code",
	}, []string{"kind", "outcome"})

	MovementRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_movement_retries_total",
		Help: "Movement attempts retried after a concurrent modification",
	})

	LockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_account_lock_wait_seconds",
		Help:    "Time spent waiting for the per-account serialization point",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	AccountTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_account_transitions_total",
		Help: "Account status transitions, labeled by target status",
	}, []string{"to"})
)
