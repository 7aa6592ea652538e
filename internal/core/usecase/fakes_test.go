package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// generatorFake answers by prompt substring; unmatched prompts are echoed back.
type generatorFake struct {
	mu         sync.Mutex
	responses  map[string]string
	err        error
	label      string
	labelErr   error
	prompts    []domain.Prompt
	structured int
}

func (f *generatorFake) Generate(_ context.Context, prompt domain.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	text := prompt.Text()
	for marker, response := range f.responses {
		if strings.Contains(text, marker) {
			return response, nil
		}
	}
	return text, nil
}

func (f *generatorFake) GenerateStructured(_ context.Context, _ domain.Prompt, labels []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structured++
	if f.labelErr != nil {
		return "", f.labelErr
	}
	if f.label != "" {
		return f.label, nil
	}
	return labels[0], nil
}

func (f *generatorFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type embedderFake struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	batches  int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.lookup(text))
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.lookup(text), nil
}

func (f *embedderFake) lookup(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	if f.fallback != nil {
		return f.fallback
	}
	return []float32{1, 0}
}

// retrieverFake returns per-query lists, or defaultDocs for unknown queries.
type retrieverFake struct {
	mu          sync.Mutex
	lists       map[string]domain.RankedList
	defaultDocs domain.RankedList
	err         error
	queries     []string
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, _ int) (domain.RankedList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if docs, ok := f.lists[query]; ok {
		return docs, nil
	}
	return f.defaultDocs, nil
}

func (f *retrieverFake) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type labelRouterFake struct {
	label domain.RouteLabel
	err   error
}

func (f *labelRouterFake) Route(context.Context, string) (domain.RouteLabel, error) {
	if f.err != nil {
		return "", &domain.RoutingError{Router: "logical", Err: f.err}
	}
	return f.label, nil
}

type panicRouterFake struct{}

func (panicRouterFake) Route(context.Context, string) (*domain.SemanticRoute, error) {
	panic("boom")
}

// panicRetrieverFake panics for one query and answers the rest.
type panicRetrieverFake struct {
	panicOn string
	docs    domain.RankedList
}

func (f panicRetrieverFake) Retrieve(_ context.Context, query string, _ int) (domain.RankedList, error) {
	if query == f.panicOn {
		panic("index corrupted")
	}
	return f.docs, nil
}

type observerFake struct {
	mu   sync.Mutex
	runs []*domain.PipelineRun
}

func (f *observerFake) ObserveRun(_ context.Context, run *domain.PipelineRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
}

var errCollaborator = errors.New("collaborator down")
