package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// RunPublisher publishes a RunEvent for every finished run.
type RunPublisher struct {
	conn    *Conn
	subject string
}

func NewRunPublisher(conn *Conn, subject string) *RunPublisher {
	if subject == "" {
		subject = DefaultRunsSubject
	}
	return &RunPublisher{conn: conn, subject: subject}
}

// ObserveRun never blocks the run on broker failures; they are logged.
func (p *RunPublisher) ObserveRun(ctx context.Context, run *domain.PipelineRun) {
	if err := p.Publish(ctx, NewRunEvent(run, time.Now().UTC())); err != nil {
		p.conn.logger.Warn("run_event_publish_failed", "run_id", run.RunID, "error", err)
	}
}

func (p *RunPublisher) Publish(ctx context.Context, event domain.RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	call := func(context.Context) error {
		if err := p.conn.nc.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.conn.executor != nil {
		err = p.conn.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporary("nats publish", err)
}

func NewRunEvent(run *domain.PipelineRun, finishedAt time.Time) domain.RunEvent {
	event := domain.RunEvent{
		RunID:         run.RunID,
		Method:        run.Method,
		Status:        run.Status(),
		ExecutionTime: run.ExecutionTime,
		Degraded:      run.Degraded,
		Error:         run.Error,
		FinishedAt:    finishedAt,
	}
	if r := run.PipelineStages.Retrieval; r != nil {
		event.NumDocuments = r.NumDocuments
	}
	return event
}
