package openaicompat

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

type modelFake struct {
	messages []llms.MessageContent
	reply    string
	err      error
}

func (m *modelFake) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *modelFake) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGenerateMapsRoles(t *testing.T) {
	model := &modelFake{reply: "  answer \n"}
	gen := newGenerator(model, nil)

	out, err := gen.Generate(context.Background(), domain.Prompt{Messages: []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "example"},
		{Role: domain.RoleAssistant, Content: "shot"},
		{Role: domain.RoleUser, Content: "question"},
	}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "answer" {
		t.Fatalf("expected trimmed answer, got %q", out)
	}
	want := []llms.ChatMessageType{llms.ChatMessageTypeSystem, llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI, llms.ChatMessageTypeHuman}
	for i, role := range want {
		if model.messages[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, model.messages[i].Role)
		}
	}
}

func TestGenerateStructuredValidatesLabel(t *testing.T) {
	labels := []string{"leave_policy.txt", "it_and_security_policy.txt"}

	gen := newGenerator(&modelFake{reply: "```json\n{\"file_name\": \"leave_policy.txt\"}\n```"}, nil)
	label, err := gen.GenerateStructured(context.Background(), domain.UserPrompt("q"), labels)
	if err != nil || label != "leave_policy.txt" {
		t.Fatalf("expected leave_policy.txt, got %q err=%v", label, err)
	}

	gen = newGenerator(&modelFake{reply: `{"file_name": "nope.txt"}`}, nil)
	if _, err := gen.GenerateStructured(context.Background(), domain.UserPrompt("q"), labels); err == nil {
		t.Fatalf("expected error for label outside set")
	}
}

func TestGenerateStructuredDoesNotMutatePrompt(t *testing.T) {
	prompt := domain.Prompt{Messages: make([]domain.PromptMessage, 1, 4)}
	prompt.Messages[0] = domain.PromptMessage{Role: domain.RoleUser, Content: "q"}
	gen := newGenerator(&modelFake{reply: `{"file_name":"a"}`}, nil)
	_, _ = gen.GenerateStructured(context.Background(), prompt, []string{"a"})
	if len(prompt.Messages) != 1 {
		t.Fatalf("expected caller prompt untouched, got %d messages", len(prompt.Messages))
	}
}

func TestGeneratePropagatesModelError(t *testing.T) {
	cause := errors.New("quota")
	gen := newGenerator(&modelFake{err: cause}, nil)
	if _, err := gen.Generate(context.Background(), domain.UserPrompt("q")); !errors.Is(err, cause) {
		t.Fatalf("expected model error, got %v", err)
	}
}
