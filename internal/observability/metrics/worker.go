package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers queries answered over NATS.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	queryTotal    *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queries_total",
			Help:      "Total queued queries handled by status.",
		},
		[]string{"service", "status"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "query_duration_seconds",
			Help:      "Queued query handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	queryInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queries_in_flight",
			Help:      "Number of queued queries being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(queryTotal, queryDuration, queryInFlight)

	return &WorkerMetrics{
		registry:      registry,
		service:       service,
		queryTotal:    queryTotal,
		queryDuration: queryDuration,
		queryInFlight: queryInFlight,
	}
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartQuery() {
	m.queryInFlight.Inc()
}

func (m *WorkerMetrics) FinishQuery(duration time.Duration, status string) {
	m.queryInFlight.Dec()
	if status == "" {
		status = "unknown"
	}
	m.queryTotal.WithLabelValues(m.service, status).Inc()
	m.queryDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}
