package content

import "context"

// Role is the author of one chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one ordered chat message.
type Message struct {
	Role    Role
	Content string
}

// Request is a single text completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Provider completes chat requests into raw text.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Prompt is the caller-authored half of a request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

func (p Prompt) request(model string) Request {
	var messages []Message
	if p.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: p.System})
	}
	messages = append(messages, Message{Role: RoleUser, Content: p.User})
	return Request{
		Model:       model,
		Messages:    messages,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		MaxTokens:   p.MaxTokens,
	}
}
