// Package subject derives coarse topic fingerprints ("subject units") from ticket text.
package subject

import (
	"sort"
	"strings"

	"github.com/thebtf/ticketsim/internal/textnorm"
)

// Set is a deduplicated set of subject units.
type Set map[string]struct{}

// NewSet builds a set from the given units, skipping empty strings.
func NewSet(units ...string) Set {
	s := make(Set, len(units))
	for _, u := range units {
		s.Add(u)
	}
	return s
}

// Add inserts a unit.
func (s Set) Add(unit string) {
	if unit != "" {
		s[unit] = struct{}{}
	}
}

// Has reports whether unit is in the set.
func (s Set) Has(unit string) bool {
	_, ok := s[unit]
	return ok
}

// Intersects reports whether the two sets share at least one unit.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for u := range small {
		if large.Has(u) {
			return true
		}
	}
	return false
}

// Intersection returns the units present in both sets, sorted.
func (s Set) Intersection(other Set) []string {
	var out []string
	for u := range s {
		if other.Has(u) {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |s ∩ other| / |s ∪ other|, or 0 when either set is empty.
func (s Set) Jaccard(other Set) float64 {
	if len(s) == 0 || len(other) == 0 {
		return 0
	}
	inter := 0
	for u := range s {
		if other.Has(u) {
			inter++
		}
	}
	union := len(s) + len(other) - inter
	return float64(inter) / float64(union)
}

// Sorted returns the units in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Recognizer maps ticket text to a subject set. Implementations must be
// deterministic and safe for concurrent use.
type Recognizer interface {
	Subjects(summary, description string) Set
}

// HeadTermRecognizer is the default recognizer: head-term windows, verbatim
// domain phrases, and summary n-grams as a low-precision fallback.
type HeadTermRecognizer struct {
	norm    *textnorm.Normalizer
	phrases []string
}

// NewHeadTermRecognizer creates a recognizer over the normalizer's vocabulary.
func NewHeadTermRecognizer(norm *textnorm.Normalizer) *HeadTermRecognizer {
	var phrases []string
	for _, p := range norm.Tables().DomainPhrases {
		if c := textnorm.Clean(p); c != "" {
			phrases = append(phrases, c)
		}
	}
	return &HeadTermRecognizer{norm: norm, phrases: phrases}
}

// Subjects implements Recognizer.
func (r *HeadTermRecognizer) Subjects(summary, description string) Set {
	set := make(Set)
	full := joinText(summary, description)

	for _, u := range r.HeadUnits(r.norm.Tokens(full)) {
		set.Add(u)
	}

	cleaned := " " + textnorm.Clean(full) + " "
	for _, p := range r.phrases {
		if strings.Contains(cleaned, " "+p+" ") {
			set.Add(p)
		}
	}

	summaryTokens := r.norm.Tokens(summary)
	for _, g := range NGrams(summaryTokens, 2) {
		set.Add(g)
	}
	for _, g := range NGrams(summaryTokens, 3) {
		set.Add(g)
	}
	return set
}

// HeadUnits emits, for each head term in tokens, the head joined with its
// neighbouring content tokens: "prev head", "head next" and "prev head next".
// A head with no neighbours is emitted alone.
func (r *HeadTermRecognizer) HeadUnits(tokens []string) []string {
	tables := r.norm.Tables()
	var units []string
	for i, tok := range tokens {
		if !tables.IsSubjectHead(tok) {
			continue
		}
		hasPrev := i > 0
		hasNext := i+1 < len(tokens)
		switch {
		case hasPrev && hasNext:
			units = append(units,
				tokens[i-1]+" "+tok,
				tok+" "+tokens[i+1],
				tokens[i-1]+" "+tok+" "+tokens[i+1])
		case hasPrev:
			units = append(units, tokens[i-1]+" "+tok)
		case hasNext:
			units = append(units, tok+" "+tokens[i+1])
		default:
			units = append(units, tok)
		}
	}
	return units
}

// NGrams returns all contiguous n-token sequences joined by spaces.
func NGrams(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

func joinText(summary, description string) string {
	if description == "" {
		return summary
	}
	return summary + "\n" + description
}
