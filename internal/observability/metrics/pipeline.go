package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// PipelineMetrics records finished runs and adapter resilience events.
type PipelineMetrics struct {
	service string

	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	stageFailures     *prometheus.CounterVec
	routingErrors     *prometheus.CounterVec
	retrievedDocs     *prometheus.HistogramVec
	degradedRuns      prometheus.Counter
	retryAttempts     *prometheus.CounterVec
	breakerTransition *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Finished pipeline runs by method and status.",
			},
			[]string{"service", "method", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Pipeline run duration in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"service", "method"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Fatal stage failures.",
			},
			[]string{"service", "stage"},
		),
		routingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "routing_errors_total",
				Help:      "Non-fatal router failures.",
			},
			[]string{"service", "router"},
		),
		retrievedDocs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "retrieved_documents",
				Help:      "Distinct documents retrieved per run.",
				Buckets:   []float64{0, 1, 2, 4, 8, 12, 16, 24},
			},
			[]string{"service", "method"},
		),
		degradedRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "degraded_runs_total",
				Help:        "Runs served by the unavailable retriever.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		retryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "retry_attempts_total",
				Help:      "Retries performed by adapter operation.",
			},
			[]string{"service", "operation"},
		),
		breakerTransition: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state transitions.",
			},
			[]string{"service", "operation", "from", "to"},
		),
	}

	registerer.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.stageFailures,
		m.routingErrors,
		m.retrievedDocs,
		m.degradedRuns,
		m.retryAttempts,
		m.breakerTransition,
	)
	return m
}

func (m *PipelineMetrics) ObserveRun(_ context.Context, run *domain.PipelineRun) {
	method := string(run.Method)
	m.runsTotal.WithLabelValues(m.service, method, string(run.Status())).Inc()
	m.runDuration.WithLabelValues(m.service, method).Observe(run.ExecutionTime)

	if run.FailedStage != "" {
		m.stageFailures.WithLabelValues(m.service, run.FailedStage).Inc()
	}
	if run.Degraded {
		m.degradedRuns.Inc()
	}
	if r := run.PipelineStages.Retrieval; r != nil {
		m.retrievedDocs.WithLabelValues(m.service, method).Observe(float64(r.NumDocuments))
	}
	if routing := run.PipelineStages.Routing; routing != nil {
		if routing.LogicalRouting != nil && routing.LogicalRouting.Error != "" {
			m.routingErrors.WithLabelValues(m.service, "logical").Inc()
		}
		if routing.SemanticRouting != nil && routing.SemanticRouting.Error != "" {
			m.routingErrors.WithLabelValues(m.service, "semantic").Inc()
		}
	}
}

func (m *PipelineMetrics) RetryAttempt(operation string) {
	m.retryAttempts.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) BreakerStateChange(operation, from, to string) {
	m.breakerTransition.WithLabelValues(m.service, operation, from, to).Inc()
}
