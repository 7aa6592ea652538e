package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

const logicalRouterName = "logical"

// LogicalRouter classifies a question into one label of a closed set.
type LogicalRouter struct {
	generator ports.TextGenerator
	labels    []string
	allowed   map[string]struct{}
}

func NewLogicalRouter(generator ports.TextGenerator, labels []string) (*LogicalRouter, error) {
	if len(labels) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new logical router", fmt.Errorf("route labels are empty"))
	}
	allowed := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		allowed[label] = struct{}{}
	}
	return &LogicalRouter{
		generator: generator,
		labels:    append([]string(nil), labels...),
		allowed:   allowed,
	}, nil
}

func (r *LogicalRouter) Labels() []string {
	return append([]string(nil), r.labels...)
}

func (r *LogicalRouter) Route(ctx context.Context, question string) (domain.RouteLabel, error) {
	raw, err := r.generator.GenerateStructured(ctx, buildRoutingPrompt(question, r.labels), r.labels)
	if err != nil {
		return "", &domain.RoutingError{Router: logicalRouterName, Err: err}
	}
	label := strings.TrimSpace(raw)
	if _, ok := r.allowed[label]; !ok {
		return "", &domain.RoutingError{
			Router: logicalRouterName,
			Err:    fmt.Errorf("label %q is not in the configured set", label),
		}
	}
	return domain.RouteLabel(label), nil
}
