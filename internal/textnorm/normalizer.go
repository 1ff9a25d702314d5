// Package textnorm turns raw ticket text into a normalized token stream.
package textnorm

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/thebtf/ticketsim/internal/vocab"
)

// MinTokenLen is the shortest token kept after normalization (in runes).
const MinTokenLen = 3

// punctRe matches everything except letters, digits, underscores, whitespace and hyphens.
var punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)

// Normalizer cleans text using one vocabulary snapshot. It is safe for
// concurrent use.
type Normalizer struct {
	tables  *vocab.Tables
	phrases []string
}

// New creates a normalizer over the given tables.
func New(tables *vocab.Tables) *Normalizer {
	phrases := make([]string, 0, len(tables.GenericPhrases))
	for _, p := range tables.GenericPhrases {
		p = Clean(p)
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	// Longer phrases first so "not working" wins over a shorter overlapping entry.
	slices.SortStableFunc(phrases, func(a, b string) int {
		return len(b) - len(a)
	})
	return &Normalizer{tables: tables, phrases: phrases}
}

// Tables returns the vocabulary this normalizer was built with.
func (n *Normalizer) Tables() *vocab.Tables {
	return n.tables
}

// Clean lowercases s, replaces punctuation other than hyphens with spaces
// and collapses whitespace. No words are removed.
func Clean(s string) string {
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Tokens returns the normalized token sequence of s.
// Tokens(Normalize(s)) always equals Tokens(s).
func (n *Normalizer) Tokens(s string) []string {
	tokens := n.pass(s)
	for {
		next := n.pass(strings.Join(tokens, " "))
		if slices.Equal(next, tokens) {
			return tokens
		}
		tokens = next
	}
}

// Normalize returns the normalized tokens of s joined by single spaces.
func (n *Normalizer) Normalize(s string) string {
	return strings.Join(n.Tokens(s), " ")
}

// TokenSet returns the distinct normalized tokens of s.
func (n *Normalizer) TokenSet(s string) map[string]bool {
	tokens := n.Tokens(s)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// pass runs one normalization sweep. Every sweep only removes words, so
// repeating it reaches a fixpoint.
func (n *Normalizer) pass(s string) []string {
	text := n.removePhrases(Clean(s))

	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, w := range fields {
		if n.keep(w) {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// removePhrases strips whole generic phrases from cleaned text.
func (n *Normalizer) removePhrases(text string) string {
	if text == "" || len(n.phrases) == 0 {
		return text
	}
	padded := " " + text + " "
	for changed := true; changed; {
		changed = false
		for _, p := range n.phrases {
			needle := " " + p + " "
			if strings.Contains(padded, needle) {
				padded = strings.ReplaceAll(padded, needle, " ")
				changed = true
			}
		}
	}
	return strings.TrimSpace(padded)
}

func (n *Normalizer) keep(w string) bool {
	if utf8.RuneCountInString(w) < MinTokenLen {
		return false
	}
	if strings.Trim(w, "-") == "" {
		return false
	}
	return !n.tables.IsStopWord(w) && !n.tables.IsNoise(w)
}
