package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

var errEmptyTransformation = errors.New("generator returned no usable queries")

// QueryTransformer rewrites a question into retrieval queries. It never retries.
type QueryTransformer struct {
	generator ports.TextGenerator
}

func NewQueryTransformer(generator ports.TextGenerator) *QueryTransformer {
	return &QueryTransformer{generator: generator}
}

func (t *QueryTransformer) Transform(ctx context.Context, question string, method domain.TransformationMethod) ([]string, error) {
	switch method {
	case domain.MethodBasic:
		return []string{question}, nil
	case domain.MethodMultiQuery:
		return t.MultiQuery(ctx, question)
	case domain.MethodRAGFusion:
		return t.RAGFusion(ctx, question)
	case domain.MethodDecomposition:
		return t.Decompose(ctx, question)
	case domain.MethodStepBack:
		q, err := t.StepBack(ctx, question)
		if err != nil {
			return nil, err
		}
		return []string{q}, nil
	case domain.MethodHyDE:
		passage, err := t.HyDE(ctx, question)
		if err != nil {
			return nil, err
		}
		return []string{passage}, nil
	default:
		return nil, &domain.TransformationError{
			Method:   method,
			Question: question,
			Err:      domain.WrapError(domain.ErrInvalidInput, "transform", fmt.Errorf("unknown method %q", method)),
		}
	}
}

// MultiQuery asks for paraphrases that widen recall under distance-based search.
func (t *QueryTransformer) MultiQuery(ctx context.Context, question string) ([]string, error) {
	return t.generateLines(ctx, domain.MethodMultiQuery, question, buildMultiQueryPrompt(question))
}

// RAGFusion asks for diverse search queries.
func (t *QueryTransformer) RAGFusion(ctx context.Context, question string) ([]string, error) {
	return t.generateLines(ctx, domain.MethodRAGFusion, question, buildRAGFusionPrompt(question))
}

// Decompose asks for independently answerable sub-questions.
func (t *QueryTransformer) Decompose(ctx context.Context, question string) ([]string, error) {
	return t.generateLines(ctx, domain.MethodDecomposition, question, buildDecompositionPrompt(question))
}

// StepBack returns one more general question, anchored by few-shot examples.
func (t *QueryTransformer) StepBack(ctx context.Context, question string) (string, error) {
	return t.generateSingle(ctx, domain.MethodStepBack, question, buildStepBackPrompt(question))
}

// HyDE returns a hypothetical answer passage used as the search query.
func (t *QueryTransformer) HyDE(ctx context.Context, question string) (string, error) {
	return t.generateSingle(ctx, domain.MethodHyDE, question, buildHyDEPrompt(question))
}

func (t *QueryTransformer) generateLines(
	ctx context.Context,
	method domain.TransformationMethod,
	question string,
	prompt domain.Prompt,
) ([]string, error) {
	raw, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, &domain.TransformationError{Method: method, Question: question, Err: err}
	}
	queries := splitLines(raw)
	if len(queries) == 0 {
		return nil, &domain.TransformationError{Method: method, Question: question, Err: errEmptyTransformation}
	}
	return queries, nil
}

func (t *QueryTransformer) generateSingle(
	ctx context.Context,
	method domain.TransformationMethod,
	question string,
	prompt domain.Prompt,
) (string, error) {
	raw, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &domain.TransformationError{Method: method, Question: question, Err: err}
	}
	out := strings.TrimSpace(raw)
	if out == "" {
		return "", &domain.TransformationError{Method: method, Question: question, Err: errEmptyTransformation}
	}
	return out, nil
}

// splitLines splits generator output on line boundaries and drops blank lines.
func splitLines(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
