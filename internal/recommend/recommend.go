// Package recommend maps similar tickets to canned fix suggestions, fix
// insights and coarse categories.
package recommend

import (
	"strings"

	"github.com/thebtf/ticketsim/internal/textnorm"
	"github.com/thebtf/ticketsim/internal/vocab"
	"github.com/thebtf/ticketsim/pkg/models"
)

// MaxSuggestions caps the suggestion list of any rule.
const MaxSuggestions = 5

// Predicate decides whether a rule applies to a normalized token set.
type Predicate func(tokens map[string]bool) bool

// Rule is one row of the recommendation decision table.
type Rule struct {
	Predicate   Predicate
	Name        string
	Suggestions []string
}

// AnyKeyword matches when at least one keyword is present.
func AnyKeyword(keywords ...string) Predicate {
	return func(tokens map[string]bool) bool {
		for _, k := range keywords {
			if tokens[strings.ToLower(k)] {
				return true
			}
		}
		return false
	}
}

// Generator evaluates an ordered rule table; the first matching rule wins.
type Generator struct {
	norm       *textnorm.Normalizer
	categories []vocab.KeywordRule
	rules      []Rule
	defaults   []string
}

// NewGenerator builds the rule table from the vocabulary's keyword clusters.
func NewGenerator(norm *textnorm.Normalizer) *Generator {
	tables := norm.Tables()
	rules := make([]Rule, 0, len(tables.Recommendations))
	for _, r := range tables.Recommendations {
		rules = append(rules, Rule{
			Name:        r.Name,
			Predicate:   AnyKeyword(r.Keywords...),
			Suggestions: r.Suggestions,
		})
	}
	return &Generator{
		norm:       norm,
		rules:      rules,
		defaults:   tables.DefaultSuggestions,
		categories: tables.Categories,
	}
}

// WithRules replaces the rule table, keeping the defaults.
func (g *Generator) WithRules(rules []Rule) *Generator {
	out := *g
	out.rules = rules
	return &out
}

// Rules returns the rule table in evaluation order.
func (g *Generator) Rules() []Rule {
	return g.rules
}

// Recommend returns the suggestions of the first rule matching the ticket's
// normalized text, or the default list when none matches.
func (g *Generator) Recommend(t *models.Ticket) []string {
	_, suggestions := g.Match(g.norm.TokenSet(t.Text()))
	return suggestions
}

// Match evaluates the table over a token set and returns the matching rule
// name ("" for the default list) and its capped suggestions.
func (g *Generator) Match(tokens map[string]bool) (string, []string) {
	for _, r := range g.rules {
		if r.Predicate(tokens) {
			return r.Name, capped(r.Suggestions)
		}
	}
	return "", capped(g.defaults)
}

// Categorize returns the first category whose keyword appears in the ticket
// text as a whole word or phrase, or "Other".
func (g *Generator) Categorize(text string) string {
	padded := " " + textnorm.Clean(text) + " "
	for _, c := range g.categories {
		for _, k := range c.Keywords {
			if k = textnorm.Clean(k); k != "" && strings.Contains(padded, " "+k+" ") {
				return c.Name
			}
		}
	}
	return "Other"
}

func capped(list []string) []string {
	if len(list) > MaxSuggestions {
		list = list[:MaxSuggestions]
	}
	return append([]string(nil), list...)
}
