package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTransformation = errors.New("query transformation failed")
	ErrRetrieval      = errors.New("retrieval failed")
	ErrRouting        = errors.New("routing failed")
	ErrGeneration     = errors.New("generation failed")

	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
	ErrUnavailable  = errors.New("collaborator unavailable")
	ErrNotFound     = errors.New("not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// TransformationError is returned when query rewriting cannot produce a QuerySet.
type TransformationError struct {
	Method   TransformationMethod
	Question string
	Err      error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transform query (method=%s): %v", e.Method, e.Err)
}

func (e *TransformationError) Unwrap() []error { return []error{ErrTransformation, e.Err} }

// RetrievalError is returned when the retrieval collaborator fails for a query.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve documents: %v", e.Err)
}

func (e *RetrievalError) Unwrap() []error { return []error{ErrRetrieval, e.Err} }

// RoutingError is informational; it never aborts a run.
type RoutingError struct {
	Router string
	Err    error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("%s routing: %v", e.Router, e.Err)
}

func (e *RoutingError) Unwrap() []error { return []error{ErrRouting, e.Err} }

// GenerationError is returned when answer synthesis fails.
type GenerationError struct {
	Strategy SynthesisStrategy
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s answer: %v", e.Strategy, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }
