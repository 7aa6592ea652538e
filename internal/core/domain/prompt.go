package domain

type PromptRole string

const (
	RoleSystem    PromptRole = "system"
	RoleUser      PromptRole = "user"
	RoleAssistant PromptRole = "assistant"
)

type PromptMessage struct {
	Role    PromptRole `json:"role"`
	Content string     `json:"content"`
}

// Prompt is a rendered chat prompt handed to a TextGenerator.
type Prompt struct {
	Messages []PromptMessage `json:"messages"`
}

func UserPrompt(text string) Prompt {
	return Prompt{Messages: []PromptMessage{{Role: RoleUser, Content: text}}}
}

// Text flattens the prompt for completion-style backends.
func (p Prompt) Text() string {
	if len(p.Messages) == 1 {
		return p.Messages[0].Content
	}
	var out []byte
	for i, m := range p.Messages {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, m.Role...)
		out = append(out, ':', ' ')
		out = append(out, m.Content...)
	}
	return string(out)
}
