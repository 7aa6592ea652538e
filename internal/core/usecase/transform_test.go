package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

func TestSplitLinesDropsBlankLines(t *testing.T) {
	got := splitLines("Q1\n\nQ2\n")
	if want := []string{"Q1", "Q2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSplitLinesHandlesCRLFAndWhitespace(t *testing.T) {
	got := splitLines("  first \r\n\r\n   \r\nsecond\r\n")
	if want := []string{"first", "second"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTransformBasicSkipsGenerator(t *testing.T) {
	gen := &generatorFake{}
	queries, err := NewQueryTransformer(gen).Transform(context.Background(), "", domain.MethodBasic)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(queries) != 1 || queries[0] != "" {
		t.Fatalf("expected the raw empty question, got %v", queries)
	}
	if gen.calls() != 0 {
		t.Fatalf("expected no generator call, got %d", gen.calls())
	}
}

func TestTransformMultiLineMethods(t *testing.T) {
	cases := []struct {
		method domain.TransformationMethod
		marker string
	}{
		{domain.MethodMultiQuery, "five"},
		{domain.MethodRAGFusion, "Output (4 queries)"},
		{domain.MethodDecomposition, "Output (3 queries)"},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			gen := &generatorFake{responses: map[string]string{tc.marker: "a\n\nb\nc\n"}}
			queries, err := NewQueryTransformer(gen).Transform(context.Background(), "leave?", tc.method)
			if err != nil {
				t.Fatalf("transform: %v", err)
			}
			if want := []string{"a", "b", "c"}; !reflect.DeepEqual(queries, want) {
				t.Fatalf("expected %v, got %v", want, queries)
			}
		})
	}
}

func TestTransformSingleQueryMethods(t *testing.T) {
	gen := &generatorFake{responses: map[string]string{
		"scientific paper": "  Employees accrue leave monthly.\n",
		"step back":        "What is the leave policy?",
	}}
	tr := NewQueryTransformer(gen)

	hyde, err := tr.Transform(context.Background(), "How much leave?", domain.MethodHyDE)
	if err != nil {
		t.Fatalf("hyde: %v", err)
	}
	if len(hyde) != 1 || hyde[0] != "Employees accrue leave monthly." {
		t.Fatalf("unexpected hyde queries: %v", hyde)
	}

	stepBack, err := tr.Transform(context.Background(), "Can I carry 8 days?", domain.MethodStepBack)
	if err != nil {
		t.Fatalf("step back: %v", err)
	}
	if len(stepBack) != 1 || stepBack[0] != "What is the leave policy?" {
		t.Fatalf("unexpected step-back queries: %v", stepBack)
	}
}

func TestStepBackPromptCarriesFewShotExamples(t *testing.T) {
	prompt := buildStepBackPrompt("question")
	// system + 2 examples (user, assistant) + question
	if len(prompt.Messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(prompt.Messages))
	}
	if prompt.Messages[0].Role != domain.RoleSystem || prompt.Messages[5].Content != "question" {
		t.Fatalf("unexpected prompt layout: %+v", prompt.Messages)
	}
}

func TestTransformFailureIsTransformationError(t *testing.T) {
	gen := &generatorFake{err: errCollaborator}
	_, err := NewQueryTransformer(gen).Transform(context.Background(), "q", domain.MethodRAGFusion)
	if !errors.Is(err, domain.ErrTransformation) || !errors.Is(err, errCollaborator) {
		t.Fatalf("expected transformation error wrapping collaborator error, got %v", err)
	}
	var te *domain.TransformationError
	if !errors.As(err, &te) || te.Method != domain.MethodRAGFusion || te.Question != "q" {
		t.Fatalf("expected method and question on error, got %#v", err)
	}
}

func TestTransformEmptyOutputFails(t *testing.T) {
	gen := &generatorFake{responses: map[string]string{"five": "\n \n"}}
	_, err := NewQueryTransformer(gen).MultiQuery(context.Background(), "q")
	if !errors.Is(err, domain.ErrTransformation) {
		t.Fatalf("expected transformation error, got %v", err)
	}
}

func TestTransformUnknownMethod(t *testing.T) {
	_, err := NewQueryTransformer(&generatorFake{}).Transform(context.Background(), "q", "nope")
	if !errors.Is(err, domain.ErrTransformation) || !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input transformation error, got %v", err)
	}
}
