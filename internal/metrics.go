package internal

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DrGermanius/orderingest/internal/ingest"
)

// Metrics is the Prometheus implementation of ingest.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	ingestions     prometheus.Counter
	ingestionErrs  *prometheus.CounterVec
	ordersCreated  prometheus.Counter
	recordsFailed  prometheus.Counter
	commitDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ingestions: f.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_total",
			Help: "Total number of completed ingestion calls",
		}),
		ingestionErrs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_errors_total",
			Help: "Total number of ingestion calls whose commit failed",
		}, []string{"kind"}),
		ordersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		recordsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_records_failed_total",
			Help: "Total number of submitted records that were not persisted",
		}),
		commitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IngestionCompleted(_, successful, failed int) {
	m.ingestions.Inc()
	m.ordersCreated.Add(float64(successful))
	m.recordsFailed.Add(float64(failed))
}

func (m *Metrics) IngestionFailed(kind ingest.StoreErrorKind) {
	m.ingestionErrs.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ObserveCommit(d time.Duration) {
	m.commitDuration.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
