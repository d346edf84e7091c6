// Package gemini adapts the Google Gen AI SDK to the content provider
// interface.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
)

// Config configures a Provider.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

// Provider completes requests through the Gemini API.
type Provider struct {
	client *genai.Client
}

var _ content.Provider = (*Provider)(nil)

// New creates a Gemini client.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Complete maps system messages to the system instruction and user messages
// to contents.
func (p *Provider) Complete(ctx context.Context, req content.Request) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", fmt.Errorf("model is required")
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		TopP:             genai.Ptr(float32(req.TopP)),
		MaxOutputTokens:  int32(req.MaxTokens),
		ResponseMIMEType: "application/json",
	}

	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		if m.Role == content.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("messages are required")
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini response has no text")
	}
	return text, nil
}
