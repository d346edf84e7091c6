package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// ExtractJSON returns the first JSON object found in text.
//
// Markdown code fences are unwrapped and prose before or after the object is
// ignored.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, errors.New("response is empty")
	}
	if inner, ok := fencedBlock(s); ok {
		s = inner
	}

	var firstErr error
	for offset := 0; offset < len(s); {
		idx := strings.IndexByte(s[offset:], '{')
		if idx < 0 {
			break
		}
		start := offset + idx
		var raw json.RawMessage
		err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&raw)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		offset = start + 1
	}
	if firstErr != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", firstErr)
	}
	return nil, errors.New("response contains no JSON object")
}

func fencedBlock(s string) (string, bool) {
	open := strings.Index(s, fence)
	if open < 0 {
		return "", false
	}
	body := s[open+len(fence):]
	// Skip an info string such as "json".
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	end := strings.Index(body, fence)
	if end < 0 {
		return strings.TrimSpace(body), true
	}
	return strings.TrimSpace(body[:end]), true
}
