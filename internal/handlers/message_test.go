package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	prefixes := []string{"!", "k!"}

	tests := []struct {
		name    string
		content string
		botID   string
		want    string
		args    []string
		ok      bool
	}{
		{"custom prefix", "!play never gonna", "", "play", []string{"never", "gonna"}, true},
		{"default prefix", "k!skip", "", "skip", []string{}, true},
		{"name is lowercased", "!PLAY Song", "", "play", []string{"Song"}, true},
		{"extra spaces", "  !queue   a  b ", "", "queue", []string{"a", "b"}, true},
		{"mention", "<@42> play x", "42", "play", []string{"x"}, true},
		{"nickname mention", "<@!42> stop", "42", "stop", []string{}, true},
		{"other mention", "<@7> stop", "42", "", nil, false},
		{"no prefix", "play x", "42", "", nil, false},
		{"prefix only", "!", "", "", nil, false},
		{"mention only", "<@42>", "42", "", nil, false},
		{"empty", "", "", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := ParseCommand(tt.content, prefixes, tt.botID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, name)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestParseCommandSkipsEmptyPrefix(t *testing.T) {
	_, _, ok := ParseCommand("play x", []string{""}, "")
	assert.False(t, ok)
}
