package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "plain", text: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced with language", text: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fenced without language", text: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "leading and trailing prose", text: "Hier ist das JSON: {\"a\":{\"b\":2}} Viel Spaß!", want: `{"a":{"b":2}}`},
		{name: "brace in prose before object", text: "Format {siehe unten}\n{\"a\":1}", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ExtractJSON(tt.text)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	for _, text := range []string{"", "   ", "kein json", "{\"a\":", "{'a': 1}"} {
		_, err := ExtractJSON(text)
		assert.Error(t, err, "text %q", text)
	}
}

func TestIntegerDecoding(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: `5`, want: 5},
		{raw: `-2`, want: -2},
		{raw: `3.0`, want: 3},
		{raw: `"+4"`, want: 4},
		{raw: `" -7 "`, want: -7},
		{raw: `null`, want: 0},
		{raw: `2.5`, wantErr: true},
		{raw: `"viel"`, wantErr: true},
		{raw: `true`, wantErr: true},
	}
	for _, tt := range tests {
		var n integer
		err := n.UnmarshalJSON([]byte(tt.raw))
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, int(n), tt.raw)
	}
}
