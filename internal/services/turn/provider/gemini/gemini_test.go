package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
)

func TestCompleteSendsSystemInstruction(t *testing.T) {
	var body map[string]any
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"summary\":\"- ok\"}"}]}}]}`))
	}))
	defer server.Close()

	p, err := New(context.Background(), Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), content.Request{
		Model: "gemini-2.0-flash",
		Messages: []content.Message{
			{Role: content.RoleSystem, Content: "Nur JSON."},
			{Role: content.RoleUser, Content: "Runde 1"},
		},
		Temperature: 0.4,
		TopP:        0.95,
		MaxTokens:   520,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"- ok"}`, text)
	assert.True(t, strings.HasSuffix(path, "gemini-2.0-flash:generateContent"), path)
	assert.Contains(t, body, "systemInstruction")
	assert.Contains(t, body, "contents")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
