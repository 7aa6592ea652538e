package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

func TestPipelineMetricsObserveRun(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	m := NewPipelineMetrics("api", httpMetrics.Registry())

	m.ObserveRun(context.Background(), &domain.PipelineRun{
		Method:        domain.MethodRAGFusion,
		ExecutionTime: 0.4,
		PipelineStages: domain.PipelineStages{
			Retrieval: &domain.RetrievalStage{NumDocuments: 3},
			Routing: &domain.RoutingStage{
				LogicalRouting:  &domain.LogicalRoutingResult{Error: "boom"},
				SemanticRouting: &domain.SemanticRoutingResult{},
			},
		},
	})
	m.ObserveRun(context.Background(), &domain.PipelineRun{
		Method:      domain.MethodBasic,
		Error:       "retrieval failed",
		FailedStage: "retrieval",
		Degraded:    true,
	})

	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("api", "rag_fusion", "completed")); got != 1 {
		t.Fatalf("expected one completed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.stageFailures.WithLabelValues("api", "retrieval")); got != 1 {
		t.Fatalf("expected retrieval failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.routingErrors.WithLabelValues("api", "logical")); got != 1 {
		t.Fatalf("expected logical routing error, got %v", got)
	}
	if got := testutil.ToFloat64(m.routingErrors.WithLabelValues("api", "semantic")); got != 0 {
		t.Fatalf("expected no semantic routing error, got %v", got)
	}
	if got := testutil.ToFloat64(m.degradedRuns); got != 1 {
		t.Fatalf("expected one degraded run, got %v", got)
	}
}

func TestPipelineMetricsResilienceEvents(t *testing.T) {
	m := NewPipelineMetrics("worker", NewWorkerMetrics("worker").Registry())
	m.RetryAttempt("ollama.chat")
	m.RetryAttempt("ollama.chat")
	m.BreakerStateChange("ollama.chat", "closed", "open")

	if got := testutil.ToFloat64(m.retryAttempts.WithLabelValues("worker", "ollama.chat")); got != 2 {
		t.Fatalf("expected two retries, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerTransition.WithLabelValues("worker", "ollama.chat", "closed", "open")); got != 1 {
		t.Fatalf("expected one transition, got %v", got)
	}
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/rag/methods", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path/123", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", "GET", "/v1/rag/methods", "418")); got != 1 {
		t.Fatalf("expected recorded request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", "GET", "other", "418")); got != 1 {
		t.Fatalf("expected unknown path folded to other, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "policyrag_http_requests_total") {
		t.Fatalf("expected exposition to include request counter")
	}
}

func TestWorkerMetricsTracksQueries(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartQuery()
	if got := testutil.ToFloat64(m.queryInFlight); got != 1 {
		t.Fatalf("expected one in flight, got %v", got)
	}
	m.FinishQuery(50*time.Millisecond, "")
	if got := testutil.ToFloat64(m.queryTotal.WithLabelValues("worker", "unknown")); got != 1 {
		t.Fatalf("expected unknown status recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.queryInFlight); got != 0 {
		t.Fatalf("expected nothing in flight, got %v", got)
	}
}
