// Package openaicompat talks to OpenAI-compatible chat and embedding APIs such
// as Groq, OpenAI or a local gateway.
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/infrastructure/resilience"
)

const labelField = "file_name"

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
}

// Generator implements text generation through langchaingo's OpenAI client.
type Generator struct {
	model    llms.Model
	executor *resilience.Executor
	logger   *slog.Logger
}

func NewGenerator(cfg Config, executor *resilience.Executor) (*Generator, error) {
	client, err := openai.New(clientOptions(cfg, openai.WithModel(cfg.Model))...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return newGenerator(client, executor), nil
}

func newGenerator(model llms.Model, executor *resilience.Executor) *Generator {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	}
	return &Generator{
		model:    model,
		executor: executor,
		logger:   slog.Default().With("component", "openai-generator"),
	}
}

func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	return g.complete(ctx, "openai chat", prompt)
}

// GenerateStructured asks for a JSON object {"file_name": label} and checks the
// label against the allowed set.
func (g *Generator) GenerateStructured(ctx context.Context, prompt domain.Prompt, labels []string) (string, error) {
	instruction := fmt.Sprintf(
		`Respond with a JSON object {"%s": <label>} where <label> is exactly one of: %s`,
		labelField, strings.Join(labels, ", "),
	)
	prompt.Messages = append(slices.Clone(prompt.Messages), domain.PromptMessage{Role: domain.RoleSystem, Content: instruction})

	raw, err := g.complete(ctx, "openai route", prompt, llms.WithJSONMode())
	if err != nil {
		return "", err
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		g.logger.Warn("structured_output_invalid", "response", raw, "error", err)
		return "", fmt.Errorf("parse structured output: %w", err)
	}
	label := strings.TrimSpace(payload[labelField])
	if !slices.Contains(labels, label) {
		return "", fmt.Errorf("structured output %q is not an allowed label", label)
	}
	return label, nil
}

func (g *Generator) complete(ctx context.Context, operation string, prompt domain.Prompt, extra ...llms.CallOption) (string, error) {
	content := toMessageContent(prompt)
	options := append([]llms.CallOption{llms.WithTemperature(0)}, extra...)

	resp, err := resilience.Do(ctx, g.executor, operation, func(callCtx context.Context) (*llms.ContentResponse, error) {
		return g.model.GenerateContent(callCtx, content, options...)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", resilience.WrapTemporary(operation, err, resilience.ClassifyHTTP)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func toMessageContent(prompt domain.Prompt) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case domain.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case domain.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Embedder implements embeddings through langchaingo.
type Embedder struct {
	embedder embeddings.Embedder
	executor *resilience.Executor
}

func NewEmbedder(cfg Config, executor *resilience.Executor) (*Embedder, error) {
	client, err := openai.New(clientOptions(cfg, openai.WithEmbeddingModel(cfg.EmbeddingModel))...)
	if err != nil {
		return nil, fmt.Errorf("create openai embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	}
	return &Embedder{embedder: embedder, executor: executor}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := resilience.Do(ctx, e.executor, "openai embed", func(callCtx context.Context) ([][]float32, error) {
		return e.embedder.EmbedDocuments(callCtx, texts)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("openai embed", err, resilience.ClassifyHTTP)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := resilience.Do(ctx, e.executor, "openai embed", func(callCtx context.Context) ([]float32, error) {
		return e.embedder.EmbedQuery(callCtx, text)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("openai embed", err, resilience.ClassifyHTTP)
	}
	return vector, nil
}

func clientOptions(cfg Config, extra ...openai.Option) []openai.Option {
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}
	opts := []openai.Option{openai.WithToken(token)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return append(opts, extra...)
}
