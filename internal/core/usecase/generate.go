package usecase

import (
	"context"
	"fmt"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

// ResponseGenerator synthesizes answers from retrieved context.
type ResponseGenerator struct {
	generator ports.TextGenerator
}

func NewResponseGenerator(generator ports.TextGenerator) *ResponseGenerator {
	return &ResponseGenerator{generator: generator}
}

func (g *ResponseGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	answer, err := g.generator.Generate(ctx, buildAnswerPrompt(contextText, question))
	if err != nil {
		return "", &domain.GenerationError{Strategy: domain.SynthesisDirect, Err: err}
	}
	return answer, nil
}

func (g *ResponseGenerator) GenerateFromDocuments(ctx context.Context, docs []domain.Document, question string) (string, error) {
	return g.Generate(ctx, domain.JoinContents(docs), question)
}

// GenerateDecomposed answers the original question from sub-question answers.
// Both slices must be non-empty and of equal length.
func (g *ResponseGenerator) GenerateDecomposed(ctx context.Context, subQuestions, subAnswers []string, original string) (string, error) {
	if len(subQuestions) == 0 || len(subQuestions) != len(subAnswers) {
		return "", &domain.GenerationError{
			Strategy: domain.SynthesisDecomposed,
			Err: domain.WrapError(domain.ErrInvalidInput, "generate decomposed",
				fmt.Errorf("got %d sub-questions and %d sub-answers", len(subQuestions), len(subAnswers))),
		}
	}

	answer, err := g.generator.Generate(ctx, buildDecomposedPrompt(formatQAPairs(subQuestions, subAnswers), original))
	if err != nil {
		return "", &domain.GenerationError{Strategy: domain.SynthesisDecomposed, Err: err}
	}
	return answer, nil
}

func (g *ResponseGenerator) GenerateStepBack(ctx context.Context, normalDocs, stepBackDocs []domain.Document, question string) (string, error) {
	prompt := buildStepBackAnswerPrompt(domain.JoinContents(normalDocs), domain.JoinContents(stepBackDocs), question)
	answer, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &domain.GenerationError{Strategy: domain.SynthesisStepBack, Err: err}
	}
	return answer, nil
}
