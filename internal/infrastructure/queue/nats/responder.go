package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

// QueryMetrics is satisfied by the worker metrics.
type QueryMetrics interface {
	StartQuery()
	FinishQuery(duration time.Duration, status string)
}

// QueryResponder answers QueryRequest messages with the resulting PipelineRun.
type QueryResponder struct {
	conn       *Conn
	runner     ports.PipelineRunner
	subject    string
	queueGroup string
	timeout    time.Duration
	metrics    QueryMetrics
}

func NewQueryResponder(conn *Conn, runner ports.PipelineRunner, subject, queueGroup string, timeout time.Duration) *QueryResponder {
	if subject == "" {
		subject = DefaultQueriesSubject
	}
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &QueryResponder{conn: conn, runner: runner, subject: subject, queueGroup: queueGroup, timeout: timeout}
}

func (r *QueryResponder) WithMetrics(metrics QueryMetrics) *QueryResponder {
	r.metrics = metrics
	return r
}

// Serve blocks until ctx is cancelled, then drains the subscription.
func (r *QueryResponder) Serve(ctx context.Context) error {
	sub, err := r.conn.nc.QueueSubscribe(r.subject, r.queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		started := time.Now()
		if r.metrics != nil {
			r.metrics.StartQuery()
		}
		reply, status := handleQuery(runCtx, r.runner, msg.Data)
		if r.metrics != nil {
			r.metrics.FinishQuery(time.Since(started), status)
		}
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			r.conn.logger.Warn("query_reply_failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := r.conn.nc.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	r.conn.logger.Info("query_responder_started", "subject", r.subject, "queue_group", r.queueGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := r.conn.nc.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

type errorReply struct {
	Error string `json:"request_error"`
}

const statusInvalid = "invalid"

// handleQuery decodes a request, runs the pipeline and encodes the reply.
// Malformed requests get an error object instead of a run.
func handleQuery(ctx context.Context, runner ports.PipelineRunner, data []byte) ([]byte, string) {
	var req domain.QueryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return mustJSON(errorReply{Error: "invalid request: " + err.Error()}), statusInvalid
	}
	if req.Query == "" {
		return mustJSON(errorReply{Error: "query is required"}), statusInvalid
	}
	method, err := domain.ParseMethod(req.Method)
	if err != nil {
		return mustJSON(errorReply{Error: err.Error()}), statusInvalid
	}
	run := runner.Run(ctx, req.Query, method, req.TopK)
	return mustJSON(run), string(run.Status())
}

func mustJSON(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		out, _ = json.Marshal(errorReply{Error: err.Error()})
	}
	return out
}

// Request sends a query to the responder group and waits for the run.
func (c *Conn) Request(ctx context.Context, subject string, req domain.QueryRequest) (*domain.PipelineRun, error) {
	if subject == "" {
		subject = DefaultQueriesSubject
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}
	msg, err := c.nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return nil, wrapTemporary("nats request", err)
	}

	var failure errorReply
	if err := json.Unmarshal(msg.Data, &failure); err == nil && failure.Error != "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nats request", fmt.Errorf("%s", failure.Error))
	}
	var run domain.PipelineRun
	if err := json.Unmarshal(msg.Data, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}
