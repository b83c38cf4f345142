// Package metrics provides Prometheus metrics for streaming sessions and
// EPG ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plexbridge"

// Metrics holds all process-wide Prometheus collectors. Each instance owns
// its registry so tests can create isolated sets.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions           prometheus.Gauge
	ActiveSessionsPerChannel *prometheus.GaugeVec
	SessionsTotal            prometheus.Counter
	SessionErrorsTotal       *prometheus.CounterVec
	BytesSentTotal           prometheus.Counter

	EpgIngestTotal    *prometheus.CounterVec
	EpgProgramsStored prometheus.Gauge
}

// New creates a Metrics instance backed by a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "active_sessions",
			Help:      "Number of currently active streaming sessions",
		}),
		ActiveSessionsPerChannel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "active_sessions_per_channel",
			Help:      "Number of currently active sessions per channel",
		}, []string{"channel"}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "sessions_total",
			Help:      "Total number of admitted streaming sessions",
		}),
		SessionErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "session_errors_total",
			Help:      "Total number of session errors by kind",
		}, []string{"kind"}),
		BytesSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to streaming clients",
		}),

		EpgIngestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epg",
			Name:      "ingest_total",
			Help:      "Total number of EPG ingest cycles by result",
		}, []string{"result"}),
		EpgProgramsStored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "epg",
			Name:      "programs_stored",
			Help:      "Number of EPG programs currently stored",
		}),
	}
}

// Registry returns the underlying registry for the metrics HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSessionError increments the error counter for an error kind.
func (m *Metrics) RecordSessionError(kind string) {
	m.SessionErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordEpgIngest increments the ingest counter for a result
// ("success" or "failure").
func (m *Metrics) RecordEpgIngest(result string) {
	m.EpgIngestTotal.WithLabelValues(result).Inc()
}
