package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/uptiq/policy-rag/internal/config"
	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
	"github.com/uptiq/policy-rag/internal/observability/metrics"
)

const maxRequestBody = 1 << 20

// HealthReporter is implemented by runners that can fall back to degraded mode.
type HealthReporter interface {
	Degraded() (string, bool)
}

// BreakerReporter exposes circuit breaker states for the health endpoint.
type BreakerReporter interface {
	BreakerStates() map[string]string
}

type RouterOptions struct {
	Service     string
	Config      config.Config
	Metrics     *metrics.HTTPServerMetrics
	MCP         http.Handler
	RunTimeout  time.Duration
	BackoffWait time.Duration
	Breakers    BreakerReporter
}

type Router struct {
	runner   ports.PipelineRunner
	opts     RouterOptions
	contract *apiContract
}

// NewRouter fails only when the embedded API description is invalid. A nil
// runner serves health and metadata while the pipeline is still starting.
func NewRouter(ctx context.Context, runner ports.PipelineRunner, opts RouterOptions) (*Router, error) {
	contract, err := loadAPIContract(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.BackoffWait <= 0 {
		opts.BackoffWait = 100 * time.Millisecond
	}
	return &Router{runner: runner, opts: opts, contract: contract}, nil
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/rag/query", rt.queryRAG)
	api.HandleFunc("GET /v1/rag/query", rt.queryRAGGet)
	api.HandleFunc("GET /v1/rag/methods", rt.listMethods)
	api.HandleFunc("GET /v1/rag/config", rt.effectiveConfig)
	if rt.opts.MCP != nil {
		api.Handle("/mcp", rt.opts.MCP)
	}

	var onReject func(string)
	if rt.opts.Metrics != nil {
		onReject = func(reason string) { rt.opts.Metrics.RecordRejected(rt.opts.Service, reason) }
	}
	guarded := rateLimitMiddleware(
		backpressureMiddleware(api, rt.opts.Config.MaxInFlight, rt.opts.BackoffWait, onReject),
		rt.opts.Config.RateLimitRPS,
		rt.opts.Config.RateLimitBurst,
		onReject,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.banner)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	mux.Handle("/v1/", guarded)
	if rt.opts.MCP != nil {
		mux.Handle("/mcp", guarded)
	}

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) banner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": rt.opts.Service,
		"message": "HR policy query transformation and retrieval API",
		"endpoints": []string{
			"GET /healthz",
			"POST /v1/rag/query",
			"GET /v1/rag/query",
			"GET /v1/rag/methods",
			"GET /v1/rag/config",
			"GET /openapi.json",
			"GET /metrics",
			"/mcp",
		},
	})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":               "ok",
		"pipeline_initialized": rt.runner != nil,
	}
	if reporter, ok := rt.runner.(HealthReporter); ok {
		if reason, degraded := reporter.Degraded(); degraded {
			resp["degraded"] = true
			resp["degraded_reason"] = reason
		}
	}
	if rt.opts.Breakers != nil {
		if states := rt.opts.Breakers.BreakerStates(); len(states) > 0 {
			resp["breakers"] = states
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.contract.json)
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read request body"})
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is required"})
		return
	}

	req, err := rt.contract.decodeQueryRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.run(w, r, req)
}

func (rt *Router) queryRAGGet(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	params := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "query", params, &req.Query); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "bind query", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "method", params, &req.Method); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "bind method", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", params, &req.TopK); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "bind top_k", err))
		return
	}
	if req.TopK < 0 {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "validate query", errors.New("top_k must not be negative")))
		return
	}
	rt.run(w, r, req)
}

func (rt *Router) run(w http.ResponseWriter, r *http.Request, req domain.QueryRequest) {
	if rt.runner == nil {
		writeError(w, domain.WrapError(domain.ErrUnavailable, "run query", errors.New("pipeline is not initialized")))
		return
	}
	method, err := domain.ParseMethod(req.Method)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if rt.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.opts.RunTimeout)
		defer cancel()
	}

	run := rt.runner.Run(ctx, req.Query, method, req.TopK)
	w.Header().Set(runIDHeader, run.RunID)
	w.Header().Set(runStatusHeader, string(run.Status()))
	// Stage failures are part of the run record, so the status stays 200.
	writeJSON(w, http.StatusOK, run)
}

type methodInfo struct {
	Name      domain.TransformationMethod `json:"name"`
	Synthesis domain.SynthesisStrategy    `json:"synthesis"`
	Reranks   bool                        `json:"reranks"`
}

func (rt *Router) listMethods(w http.ResponseWriter, _ *http.Request) {
	methods := make([]methodInfo, 0, len(domain.Methods()))
	for _, m := range domain.Methods() {
		methods = append(methods, methodInfo{Name: m, Synthesis: m.Synthesis(), Reranks: m.Reranks()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": methods})
}

func (rt *Router) effectiveConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.opts.Config.Redacted())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
