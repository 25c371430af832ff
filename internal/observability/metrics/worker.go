package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	embedTotal    *prometheus.CounterVec
	embedDuration *prometheus.HistogramVec
	embedInFlight prometheus.Gauge
	backfillSize  *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	embedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipindex",
			Subsystem: "worker",
			Name:      "entry_embed_total",
			Help:      "Total embedded entries by status.",
		},
		[]string{"service", "status"},
	)
	embedDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipindex",
			Subsystem: "worker",
			Name:      "entry_embed_duration_seconds",
			Help:      "Per-entry embedding duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	embedInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clipindex",
			Subsystem: "worker",
			Name:      "entry_embed_in_flight",
			Help:      "Number of in-flight embedding tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	backfillSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipindex",
			Subsystem: "worker",
			Name:      "backfill_embedded",
			Help:      "Entries embedded per backfill run.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service"},
	)

	registry.MustRegister(embedTotal, embedDuration, embedInFlight, backfillSize)

	return &WorkerMetrics{
		registry:      registry,
		embedTotal:    embedTotal,
		embedDuration: embedDuration,
		embedInFlight: embedInFlight,
		backfillSize:  backfillSize,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEmbed() {
	m.embedInFlight.Inc()
}

func (m *WorkerMetrics) FinishEmbed(service string, duration time.Duration, err error) {
	m.embedInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.embedTotal.WithLabelValues(service, status).Inc()
	m.embedDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveBackfill(service string, embedded int) {
	m.backfillSize.WithLabelValues(service).Observe(float64(embedded))
}
