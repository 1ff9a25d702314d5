package recommend

import (
	"strings"
	"unicode/utf8"

	"github.com/thebtf/ticketsim/pkg/models"
)

const (
	// maxCommentFindings caps each list of a CommentAnalysis.
	maxCommentFindings = 5
	// minSolutionRunes drops short sentences such as "fixed" or "will fix".
	minSolutionRunes = 15
	// minFindingRunes is the shortest sentence kept for the other lists.
	minFindingRunes = 10
)

// AnalyzeComments mines a comment thread for solutions, workarounds, root
// causes, status updates and next steps. It returns nil for an empty thread.
func (g *Generator) AnalyzeComments(comments []models.Comment) *models.CommentAnalysis {
	if len(comments) == 0 {
		return nil
	}
	fp := g.norm.Tables().FixPatterns
	out := &models.CommentAnalysis{CommentCount: len(comments)}

	seenAuthor := make(map[string]bool)
	for _, c := range comments {
		if c.Author != "" && !seenAuthor[c.Author] {
			seenAuthor[c.Author] = true
			out.Participants = append(out.Participants, c.Author)
		}
		for _, sentence := range sentences(c.Body) {
			lower := strings.ToLower(sentence)
			n := utf8.RuneCountInString(sentence)
			if n >= minSolutionRunes && containsAny(lower, fp.Solution) {
				out.Solutions = appendUnique(out.Solutions, sentence)
			}
			if n < minFindingRunes {
				continue
			}
			if containsAny(lower, fp.Workaround) {
				out.Workarounds = appendUnique(out.Workarounds, sentence)
			}
			if containsAny(lower, fp.RootCause) {
				out.RootCauses = appendUnique(out.RootCauses, sentence)
			}
			if containsAny(lower, fp.Status) {
				out.StatusUpdates = appendUnique(out.StatusUpdates, sentence)
			}
			if containsAny(lower, fp.NextSteps) {
				out.NextSteps = appendUnique(out.NextSteps, sentence)
			}
		}
	}
	return out
}

// sentences splits text on sentence punctuation and line breaks.
func sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k = strings.ToLower(k); k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if len(list) >= maxCommentFindings {
		return list
	}
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// commentText joins comment bodies for keyword search.
func commentText(comments []models.Comment) string {
	var b strings.Builder
	for _, c := range comments {
		b.WriteString("\n")
		b.WriteString(c.Body)
	}
	return b.String()
}
