package recommend

import (
	"strings"
	"unicode/utf8"

	"github.com/thebtf/ticketsim/pkg/models"
)

// contextRadius is the number of runes kept on each side of a fix keyword.
const contextRadius = 100

// Insight inspects a similar ticket and its comments for a fix that may
// carry over to the reference. Resolved tickets yield a "resolved" insight
// with solution, workaround and root-cause snippets; in-progress tickets that
// mention a workaround yield a "workaround" insight. Comments may be nil.
func (g *Generator) Insight(candidate, reference *models.Ticket, comments []models.Comment) models.FixInsight {
	tables := g.norm.Tables()
	desc := strings.ToLower(candidate.Description + commentText(comments))
	insight := models.FixInsight{Comments: g.AnalyzeComments(comments)}

	switch {
	case candidate.IsResolved():
		insight.HasFix = true
		insight.FixType = models.FixTypeResolved
		insight.Solution = firstContext(desc, tables.FixPatterns.Solution)
		insight.Workaround = firstContext(desc, tables.FixPatterns.Workaround)
		insight.RootCause = firstContext(desc, tables.FixPatterns.RootCause)
		insight.Applicable = g.applicable(candidate, reference)
		insight.Confidence = 0.5
		if insight.Applicable {
			insight.Confidence = 0.9
		}

	case candidate.IsInProgress():
		if snippet := firstContext(desc, tables.FixPatterns.Workaround); snippet != "" {
			insight.HasFix = true
			insight.FixType = models.FixTypeWorkaround
			insight.Workaround = snippet
			insight.Applicable = g.applicable(candidate, reference)
			insight.Confidence = 0.6
		}
	}

	return insight
}

// applicable averages the agreement factors between the two tickets:
// shared technology (1.0), issue type (0.8), priority (0.6) and at least two
// shared problem patterns (0.9). The fix applies when the mean exceeds 0.6.
func (g *Generator) applicable(candidate, reference *models.Ticket) bool {
	tables := g.norm.Tables()
	a := strings.ToLower(candidate.Text())
	b := strings.ToLower(reference.Text())

	var factors []float64
	if sharedCount(a, b, tables.FixTechnology) > 0 {
		factors = append(factors, 1.0)
	}
	if candidate.IssueType != "" && strings.EqualFold(candidate.IssueType, reference.IssueType) {
		factors = append(factors, 0.8)
	}
	if candidate.Priority != "" && strings.EqualFold(candidate.Priority, reference.Priority) {
		factors = append(factors, 0.6)
	}
	if sharedCount(a, b, tables.ProblemPatterns) >= 2 {
		factors = append(factors, 0.9)
	}

	if len(factors) == 0 {
		return false
	}
	var sum float64
	for _, f := range factors {
		sum += f
	}
	return sum/float64(len(factors)) > 0.6
}

func sharedCount(a, b string, patterns []string) int {
	n := 0
	for _, p := range patterns {
		p = strings.ToLower(p)
		if p != "" && strings.Contains(a, p) && strings.Contains(b, p) {
			n++
		}
	}
	return n
}

// firstContext returns the snippet around the first keyword found in text.
func firstContext(text string, keywords []string) string {
	for _, k := range keywords {
		if snippet := ExtractContext(text, strings.ToLower(k)); snippet != "" {
			return snippet
		}
	}
	return ""
}

// ExtractContext returns up to contextRadius runes on each side of the first
// occurrence of keyword, with whitespace collapsed.
func ExtractContext(text, keyword string) string {
	if keyword == "" {
		return ""
	}
	idx := strings.Index(text, keyword)
	if idx < 0 {
		return ""
	}

	runes := []rune(text)
	pos := utf8.RuneCountInString(text[:idx])
	start := max(0, pos-contextRadius)
	end := min(len(runes), pos+utf8.RuneCountInString(keyword)+contextRadius)

	return strings.Join(strings.Fields(string(runes[start:end])), " ")
}
