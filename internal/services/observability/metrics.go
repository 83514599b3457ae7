package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CreditsGranted counts credits added to the ledger, by source (welcome, purchase, manual)
	CreditsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixora_credits_granted_total",
			Help: "Total number of credits granted",
		},
		[]string{"source"},
	)

	// ConsumeAttempts counts consume calls by outcome (consumed, empty, error)
	ConsumeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixora_credit_consume_total",
			Help: "Total number of credit consume attempts",
		},
		[]string{"result"},
	)

	// Fulfillments counts payment confirmations by outcome (applied, duplicate, error)
	Fulfillments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixora_order_fulfillments_total",
			Help: "Total number of payment confirmations processed",
		},
		[]string{"result"},
	)

	LedgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixora_ledger_duration_seconds",
			Help:    "Duration of ledger operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixora_generation_duration_seconds",
			Help:    "Duration of upstream image generation calls in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers the collectors with the default registry once per process.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CreditsGranted,
			ConsumeAttempts,
			Fulfillments,
			LedgerDuration,
			GenerationDuration,
		)
	})
}

// MetricsHandler exposes the default registry in the Prometheus text format.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
