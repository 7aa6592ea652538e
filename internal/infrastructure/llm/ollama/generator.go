package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

const labelField = "file_name"

// Generator implements text generation over /api/chat.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	return g.client.chat(ctx, prompt, nil)
}

// GenerateStructured constrains the reply with a JSON schema whose single field
// is an enum of the allowed labels.
func (g *Generator) GenerateStructured(ctx context.Context, prompt domain.Prompt, labels []string) (string, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			labelField: map[string]any{
				"type": "string",
				"enum": labels,
			},
		},
		"required": []string{labelField},
	}

	raw, err := g.client.chat(ctx, prompt, schema)
	if err != nil {
		return "", err
	}
	return parseLabel(raw, labels)
}

func parseLabel(raw string, labels []string) (string, error) {
	var payload map[string]string
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return "", fmt.Errorf("parse structured output: %w", err)
	}
	label := strings.TrimSpace(payload[labelField])
	if !slices.Contains(labels, label) {
		return "", fmt.Errorf("structured output %q is not an allowed label", label)
	}
	return label, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   any            `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

func (c *Client) chat(ctx context.Context, prompt domain.Prompt, format any) (string, error) {
	messages := make([]chatMessage, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	request := chatRequest{
		Model:    c.genModel,
		Messages: messages,
		Stream:   false,
		Format:   format,
		Options:  map[string]any{"temperature": 0},
	}

	var response chatResponse
	if err := c.postJSON(ctx, "/api/chat", request, &response, "chat"); err != nil {
		return "", err
	}
	return strings.TrimSpace(stripThinking(response.Message.Content)), nil
}

// stripThinking drops a leading <think>...</think> block emitted by reasoning models.
func stripThinking(s string) string {
	const open, closeTag = "<think>", "</think>"
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, open) {
		return s
	}
	end := strings.Index(trimmed, closeTag)
	if end < 0 {
		return s
	}
	return trimmed[end+len(closeTag):]
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
