package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal    *prometheus.CounterVec
	searchResults  *prometheus.HistogramVec
	searchDuration *prometheus.HistogramVec
	answerTotal    *prometheus.CounterVec
	answerDuration *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipindex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipindex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clipindex",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipindex",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed searches by retrieval mode.",
		},
		[]string{"service", "mode"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipindex",
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of result counts per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "mode"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipindex",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	answerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipindex",
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Total answer-pipeline requests by outcome.",
		},
		[]string{"service", "status"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipindex",
			Subsystem: "answer",
			Name:      "duration_seconds",
			Help:      "Answer-pipeline duration in seconds, upload to cited answer.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchResults,
		searchDuration,
		answerTotal,
		answerDuration,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		searchTotal:     searchTotal,
		searchResults:   searchResults,
		searchDuration:  searchDuration,
		answerTotal:     answerTotal,
		answerDuration:  answerDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordSearch(service, mode string, resultCount int, duration time.Duration) {
	if mode == "" {
		mode = "keyword"
	}
	m.searchTotal.WithLabelValues(service, mode).Inc()
	m.searchResults.WithLabelValues(service, mode).Observe(float64(resultCount))
	m.searchDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordAnswer(service string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.answerTotal.WithLabelValues(service, status).Inc()
	if err == nil {
		m.answerDuration.WithLabelValues(service).Observe(duration.Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
