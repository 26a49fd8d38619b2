// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Quote metrics
	QuotesRequested prometheus.Counter
	QuoteErrors     *prometheus.CounterVec

	// Settlement metrics
	TradesSubmitted      prometheus.Counter
	TradesActive         prometheus.Gauge
	AccountsProvisioned  prometheus.Counter
	ConfirmationOutcomes *prometheus.CounterVec

	// Latency metrics
	AggregatorLatency *prometheus.HistogramVec
	RPCCallLatency    *prometheus.HistogramVec

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "swap_service"
	}

	return &Metrics{
		// Quote metrics
		QuotesRequested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Total number of aggregator quote requests",
		}),
		QuoteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "errors_total",
			Help:      "Total number of quote failures by class",
		}, []string{"class"}),

		// Settlement metrics
		TradesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "trades_submitted_total",
			Help:      "Total number of trades with at least one submitted transaction",
		}),
		TradesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "trades_active",
			Help:      "Number of trades currently in flight",
		}),
		AccountsProvisioned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "accounts_provisioned_total",
			Help:      "Total number of associated token accounts created",
		}),
		ConfirmationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "confirmation_outcomes_total",
			Help:      "Total number of confirmation results by terminal state",
		}, []string{"state"}),

		// Latency metrics
		AggregatorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "request_latency_seconds",
			Help:      "Aggregator API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database errors by store",
		}, []string{"store"}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
