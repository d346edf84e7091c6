// Package mistral adapts the Mistral chat completions endpoint to the content
// provider interface.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/louisbranch/euroturn/internal/platform/timeouts"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
)

// DefaultURL is the public chat completions endpoint.
const DefaultURL = "https://api.mistral.ai/v1/chat/completions"

// Config configures a Provider.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// Provider completes requests through the Mistral HTTP API.
type Provider struct {
	cfg Config
}

var _ content.Provider = (*Provider)(nil)

// New returns a Provider, filling in the default URL and client.
func New(cfg Config) *Provider {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: timeouts.ProviderRequest}
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	return &Provider{cfg: cfg}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends req and returns the first choice's text.
func (p *Provider) Complete(ctx context.Context, req content.Request) (string, error) {
	apiKey := strings.TrimSpace(p.cfg.APIKey)
	model := strings.TrimSpace(req.Model)
	if apiKey == "" {
		return "", fmt.Errorf("api key is required")
	}
	if model == "" {
		return "", fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("messages are required")
	}

	body := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := p.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return "", fmt.Errorf("read chat error body: %w", err)
		}
		return "", fmt.Errorf("chat request status %d: %s", res.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var payload chatResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return contentText(payload.Choices[0].Message.Content), nil
}

// contentText flattens a message content that is either a string or a list
// of typed chunks.
func contentText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var chunks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return ""
	}
	var b strings.Builder
	for _, chunk := range chunks {
		if chunk.Type == "" || chunk.Type == "text" {
			b.WriteString(chunk.Text)
		}
	}
	return b.String()
}
