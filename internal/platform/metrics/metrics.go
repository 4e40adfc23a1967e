package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RecordsIngested    *prometheus.CounterVec
	Retrievals         *prometheus.CounterVec
	ValidationFailures prometheus.Counter
	AuditEmitted       prometheus.Counter
	AuditDropped       prometheus.Counter
	AuditMirrored      prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RecordsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mvrgate_records_ingested_total",
			Help: "Total ingestion outcomes by result (new, updated, skipped, failed)",
		}, []string{"outcome"}),
		Retrievals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mvrgate_retrievals_total",
			Help: "Total retrieval attempts by result (ok, not_found, failed)",
		}, []string{"result"}),
		ValidationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mvrgate_validation_failures_total",
			Help: "Total requests rejected by field validation",
		}),
		AuditEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mvrgate_audit_events_emitted_total",
			Help: "Total audit events handed to the outbound worker",
		}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mvrgate_audit_events_dropped_total",
			Help: "Total audit events dropped because the outbound buffer was full",
		}),
		AuditMirrored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mvrgate_audit_events_mirrored_total",
			Help: "Total synthetic seller-partition events emitted by the mirror stage",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mvrgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}
