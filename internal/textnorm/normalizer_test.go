package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thebtf/ticketsim/internal/vocab"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "api timeout - on prod", Clean("  API   timeout!! - on  prod. "))
	assert.Equal(t, "gen-ai node", Clean("Gen-AI node?"))
	assert.Equal(t, "", Clean("!!! ..."))
}

func TestTokens(t *testing.T) {
	n := New(vocab.Default())

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "lowercases and drops stop words",
			input:    "Database connection timeout in production",
			expected: []string{"database", "connection", "timeout", "production"},
		},
		{
			name:     "removes generic phrases before tokenizing",
			input:    "Login not working as expected after upgrade",
			expected: []string{"login", "upgrade"},
		},
		{
			name:     "drops domain noise",
			input:    "Bug: JIRA ticket issue with the dashboard widget",
			expected: []string{"dashboard", "widget"},
		},
		{
			name:     "keeps hyphenated words",
			input:    "Gen-AI node failing on re-index",
			expected: []string{"gen-ai", "node", "re-index"},
		},
		{
			name:     "drops short tokens",
			input:    "UI is ok on v2 db",
			expected: []string{},
		},
		{
			name:     "generic phrase inside a word is kept",
			input:    "unfailed refailing",
			expected: []string{"unfailed", "refailing"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []string{},
		},
		{
			name:     "unicode letters survive",
			input:    "Überprüfung der Sitzung",
			expected: []string{"überprüfung", "der", "sitzung"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Tokens(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(vocab.Default())

	inputs := []string{
		"Database connection timeout in production",
		"DialogGPT API timeout!!! not working -- as expected",
		"issue not with working",
		"error occurred: showing error while user id filter failing",
		"  --  -x- a b c   ",
		"Issue issue with with the the failed failure",
		"\xff\xfe invalid bytes api",
		"Gen-AI node: unexpected unexpected",
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
	}
}

func TestTokenSet(t *testing.T) {
	n := New(vocab.Default())
	set := n.TokenSet("api api timeout")
	assert.Equal(t, map[string]bool{"api": true, "timeout": true}, set)
}
