package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

func TestGenerateFromDocumentsJoinsContext(t *testing.T) {
	gen := &generatorFake{}
	answer, err := NewResponseGenerator(gen).GenerateFromDocuments(context.Background(), []domain.Document{
		doc("first", "a.txt"),
		doc("second", "b.txt"),
	}, "question?")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(answer, "first\n\nsecond") {
		t.Fatalf("expected blank-line separated context, got %q", answer)
	}
	if !strings.Contains(answer, "Question: question?") {
		t.Fatalf("expected question in prompt, got %q", answer)
	}
}

func TestGenerateDecomposedFormatsQAPairs(t *testing.T) {
	gen := &generatorFake{}
	answer, err := NewResponseGenerator(gen).GenerateDecomposed(
		context.Background(),
		[]string{"q1", "q2"},
		[]string{"a1", "a2"},
		"original",
	)
	if err != nil {
		t.Fatalf("generate decomposed: %v", err)
	}
	want := "Question 1: q1\nAnswer 1: a1\n\nQuestion 2: q2\nAnswer 2: a2"
	if !strings.Contains(answer, want) {
		t.Fatalf("expected transcript %q in %q", want, answer)
	}
	if !strings.Contains(answer, "original question: original") {
		t.Fatalf("expected original question in %q", answer)
	}
}

func TestGenerateDecomposedCountMismatch(t *testing.T) {
	gen := &generatorFake{}
	r := NewResponseGenerator(gen)

	if _, err := r.GenerateDecomposed(context.Background(), []string{"q1", "q2"}, []string{"a1"}, "q"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input on mismatch, got %v", err)
	}
	if _, err := r.GenerateDecomposed(context.Background(), nil, nil, "q"); !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected generation error on empty input, got %v", err)
	}
	if gen.calls() != 0 {
		t.Fatalf("expected generator not to be called, got %d calls", gen.calls())
	}
}

func TestGenerateStepBackLabelsBothBlocks(t *testing.T) {
	gen := &generatorFake{}
	answer, err := NewResponseGenerator(gen).GenerateStepBack(
		context.Background(),
		[]domain.Document{doc("normal doc", "a")},
		[]domain.Document{doc("general doc", "b")},
		"specific?",
	)
	if err != nil {
		t.Fatalf("step back: %v", err)
	}
	normal := strings.Index(answer, "# Normal Context\nnormal doc")
	general := strings.Index(answer, "# Step-Back Context\ngeneral doc")
	if normal < 0 || general < 0 || normal > general {
		t.Fatalf("expected labeled blocks in order, got %q", answer)
	}
}

func TestGenerateFailureIsGenerationError(t *testing.T) {
	gen := &generatorFake{err: errCollaborator}
	_, err := NewResponseGenerator(gen).Generate(context.Background(), "ctx", "q")
	var ge *domain.GenerationError
	if !errors.As(err, &ge) || ge.Strategy != domain.SynthesisDirect || !errors.Is(err, errCollaborator) {
		t.Fatalf("expected direct generation error, got %v", err)
	}
}
