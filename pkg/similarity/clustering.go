// Package similarity provides text similarity and clustering utilities.
package similarity

import (
	"sort"

	"github.com/thebtf/ticketsim/pkg/models"
)

// DefaultTopKeywords is the number of common keywords reported per group.
const DefaultTopKeywords = 5

// Tokenizer turns raw text into normalized tokens.
type Tokenizer func(text string) []string

// GroupConfig controls a grouping run.
type GroupConfig struct {
	// Threshold is the minimum summary similarity to the seed for membership.
	Threshold float64
	// TopKeywords caps the common keyword list (DefaultTopKeywords when <= 0).
	TopKeywords int
}

// GroupTickets partitions tickets with greedy single-link seeding.
//
// Tickets are processed in input order: the first unassigned ticket seeds a
// new group and every later unassigned ticket whose summary similarity to the
// seed meets the threshold joins it. Tickets matching nothing form singleton
// groups. The result depends on input order but is deterministic for a fixed
// order. Complexity is O(n²) comparisons.
func GroupTickets(tickets []models.Ticket, tokenize Tokenizer, cfg GroupConfig) []models.Group {
	if len(tickets) == 0 {
		return []models.Group{}
	}
	topK := cfg.TopKeywords
	if topK <= 0 {
		topK = DefaultTopKeywords
	}

	// Extract summary term frequencies once per ticket
	tokens := make([][]string, len(tickets))
	freqs := make([]map[string]int, len(tickets))
	for i := range tickets {
		tokens[i] = tokenize(tickets[i].Summary)
		freqs[i] = TermFrequencies(tokens[i])
	}

	assigned := make([]bool, len(tickets))
	groups := make([]models.Group, 0)

	for i := 0; i < len(tickets); i++ {
		if assigned[i] {
			continue
		}

		// This ticket seeds the group
		members := []int{i}
		assigned[i] = true

		for j := i + 1; j < len(tickets); j++ {
			if assigned[j] {
				continue
			}
			if CosineFrequencies(freqs[i], freqs[j]) >= cfg.Threshold {
				members = append(members, j)
				assigned[j] = true
			}
		}

		group := models.Group{
			ID:             len(groups) + 1,
			Members:        make([]models.Ticket, len(members)),
			CommonKeywords: commonKeywords(members, tokens, topK),
			Cohesion:       cohesion(members, freqs),
		}
		for k, idx := range members {
			group.Members[k] = tickets[idx]
		}
		groups = append(groups, group)
	}

	return groups
}

// commonKeywords returns the tokens present in every member summary, ranked by
// total frequency across members and then alphabetically.
func commonKeywords(members []int, tokens [][]string, topK int) []string {
	counts := make(map[string]int)
	presence := make(map[string]int)
	for _, idx := range members {
		seen := make(map[string]bool)
		for _, tok := range tokens[idx] {
			counts[tok]++
			if !seen[tok] {
				seen[tok] = true
				presence[tok]++
			}
		}
	}

	keywords := make([]string, 0)
	for tok, n := range presence {
		if n == len(members) {
			keywords = append(keywords, tok)
		}
	}
	sort.Slice(keywords, func(a, b int) bool {
		if counts[keywords[a]] != counts[keywords[b]] {
			return counts[keywords[a]] > counts[keywords[b]]
		}
		return keywords[a] < keywords[b]
	})

	if len(keywords) > topK {
		keywords = keywords[:topK]
	}
	return keywords
}

// cohesion is the mean pairwise similarity over all member pairs; 0 for singletons.
func cohesion(members []int, freqs []map[string]int) float64 {
	if len(members) < 2 {
		return 0
	}
	var sum float64
	pairs := 0
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum += CosineFrequencies(freqs[members[a]], freqs[members[b]])
			pairs++
		}
	}
	return sum / float64(pairs)
}
