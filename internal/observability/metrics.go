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
	// Stream metrics
	StreamMessagesReceived prometheus.Counter
	StreamMessagesDropped  prometheus.Counter
	StreamReconnects       prometheus.Counter

	// Handler metrics
	EventsHandled  *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	HandlerErrors  *prometheus.CounterVec
	HandlerLatency *prometheus.HistogramVec

	// Lifecycle metrics
	StateTransitions *prometheus.CounterVec
	TokensByState    *prometheus.GaugeVec

	// Buffer metrics
	BufferPending prometheus.Gauge
	BufferSynced  prometheus.Counter
	BufferErrors  prometheus.Counter

	// Job metrics
	JobRuns     *prometheus.CounterVec
	JobErrors   *prometheus.CounterVec
	JobSkips    *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	// Enrichment metrics
	EnrichmentsTotal prometheus.Counter
	EnrichmentErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_tracker"
	}

	return &Metrics{
		StreamMessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_received_total",
			Help:      "Total number of feed messages received",
		}),
		StreamMessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Total number of malformed or unrecognized feed messages dropped",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		}),

		EventsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "events_handled_total",
			Help:      "Total number of events handled, by event type",
		}, []string{"event"}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped before persistence, by reason",
		}, []string{"reason"}),
		HandlerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "errors_total",
			Help:      "Total number of handler errors, by event type",
		}, []string{"event"}),
		HandlerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "latency_seconds",
			Help:      "Handler processing latency in seconds, by event type",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),

		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "state_transitions_total",
			Help:      "Total number of lifecycle state transitions, by target state",
		}, []string{"to"}),
		TokensByState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "tokens",
			Help:      "Number of tracked tokens per lifecycle state",
		}, []string{"state"}),

		BufferPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "pending",
			Help:      "Number of mints awaiting flush to the durable store",
		}),
		BufferSynced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "synced_total",
			Help:      "Total number of staged entries flushed to the durable store",
		}),
		BufferErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "errors_total",
			Help:      "Total number of per-mint flush failures left for retry",
		}),

		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of job ticks executed, by job name",
		}, []string{"job"}),
		JobErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "errors_total",
			Help:      "Total number of failed job ticks, by job name",
		}, []string{"job"}),
		JobSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "skips_total",
			Help:      "Total number of skipped job ticks, by job name and reason",
		}, []string{"job", "reason"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job tick duration in seconds, by job name",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"job"}),

		EnrichmentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "enrichments_total",
			Help:      "Total number of enrichment fan-outs completed",
		}),
		EnrichmentErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "errors_total",
			Help:      "Total number of provider failures during enrichment, by provider",
		}, []string{"provider"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
