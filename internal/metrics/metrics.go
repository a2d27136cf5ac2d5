package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_operations_total",
		Help: "Ledger operations by outcome",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitledger_operation_duration_seconds",
		Help:    "Ledger operation latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})

	simplifiedDebts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "splitledger_simplified_debts",
		Help:    "Debts left in a group after simplification",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeInvalid    = "invalid"
	OutcomeStoreError = "store_error"
	OutcomeNotFound   = "not_found"
)

// Track starts timing an operation; call the returned func with its outcome.
func Track(operation string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		operationsTotal.WithLabelValues(operation, outcome).Inc()
	}
}

func ObserveSimplified(n int) {
	simplifiedDebts.Observe(float64(n))
}

func ObserveHTTP(method, route, status string) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
}
