package recommend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ticketsim/internal/textnorm"
	"github.com/thebtf/ticketsim/internal/vocab"
	"github.com/thebtf/ticketsim/pkg/models"
)

func newGenerator() *Generator {
	return NewGenerator(textnorm.New(vocab.Default()))
}

func TestRecommend_FirstMatchWins(t *testing.T) {
	g := newGenerator()

	tests := []struct {
		name     string
		ticket   models.Ticket
		expected string
	}{
		{"database cluster", models.Ticket{Summary: "Connection pool exhausted under load"}, "database"},
		{"database beats performance", models.Ticket{Summary: "Slow database queries"}, "database"},
		{"performance", models.Ticket{Summary: "Dashboard response is slow"}, "performance"},
		{"memory", models.Ticket{Summary: "Worker leak grows heap"}, "memory"},
		{"api", models.Ticket{Summary: "REST endpoint rejects payload"}, "api"},
		{"default", models.Ticket{Summary: "Typo in footer copy"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, suggestions := g.Match(g.norm.TokenSet(tt.ticket.Text()))
			assert.Equal(t, tt.expected, name)
			assert.NotEmpty(t, suggestions)
			assert.LessOrEqual(t, len(suggestions), MaxSuggestions)
			assert.Equal(t, suggestions, g.Recommend(&tt.ticket))
		})
	}
}

func TestRecommend_DefaultList(t *testing.T) {
	g := newGenerator()
	got := g.Recommend(&models.Ticket{Summary: "Typo in footer copy"})
	assert.Equal(t, vocab.Default().DefaultSuggestions, got)
}

func TestRecommend_CustomRulesAndCap(t *testing.T) {
	g := newGenerator().WithRules([]Rule{
		{Name: "many", Predicate: AnyKeyword("footer"), Suggestions: []string{"a", "b", "c", "d", "e", "f", "g"}},
	})

	got := g.Recommend(&models.Ticket{Summary: "Typo in footer copy"})
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

	// Mutating the result must not leak into the table.
	got[0] = "changed"
	assert.Equal(t, "a", g.Rules()[0].Suggestions[0])
}

func TestCategorize(t *testing.T) {
	g := newGenerator()

	assert.Equal(t, "DialogGPT", g.Categorize("DialogGPT answers in wrong language"))
	assert.Equal(t, "Session Closure", g.Categorize("Session timeout closes chat"))
	assert.Equal(t, "Performance", g.Categorize("Page is slow"))
	assert.Equal(t, "Database", g.Categorize("SQL query hangs"))
	assert.Equal(t, "Other", g.Categorize("Typo in footer copy"))
	// Keywords match whole words only.
	assert.Equal(t, "Other", g.Categorize("Feedback form typo"))
}

func TestInsight_Resolved(t *testing.T) {
	g := newGenerator()
	cand := &models.Ticket{
		Key:         "PLAT-9",
		Status:      "Closed",
		IssueType:   "Bug",
		Priority:    "High",
		Description: "Root cause was a stale embedding index. Solution: rebuild vector store nightly. Intermittent timeout seen before.",
	}
	ref := &models.Ticket{
		Key:         "PLAT-1",
		IssueType:   "Bug",
		Priority:    "High",
		Summary:     "SearchAI returns stale vector results",
		Description: "Intermittent timeout when querying",
	}

	insight := g.Insight(cand, ref, nil)

	assert.True(t, insight.HasFix)
	assert.Equal(t, models.FixTypeResolved, insight.FixType)
	assert.Contains(t, insight.Solution, "rebuild vector store")
	assert.Contains(t, insight.RootCause, "stale embedding index")
	assert.True(t, insight.Applicable)
	assert.InDelta(t, 0.9, insight.Confidence, 0.001)
}

func TestInsight_ResolvedNotApplicable(t *testing.T) {
	g := newGenerator()
	cand := &models.Ticket{Status: "Done", IssueType: "Customer-Incident", Priority: "Low", Description: "Fixed by config change"}
	ref := &models.Ticket{IssueType: "Bug", Priority: "High", Summary: "Login broken"}

	insight := g.Insight(cand, ref, nil)
	assert.True(t, insight.HasFix)
	assert.False(t, insight.Applicable)
	assert.InDelta(t, 0.5, insight.Confidence, 0.001)
}

func TestInsight_Workaround(t *testing.T) {
	g := newGenerator()
	cand := &models.Ticket{Status: "In Progress", IssueType: "Bug", Description: "As a temporary workaround, restart the connector."}
	ref := &models.Ticket{IssueType: "Bug", Summary: "Connector stuck"}

	insight := g.Insight(cand, ref, nil)
	assert.True(t, insight.HasFix)
	assert.Equal(t, models.FixTypeWorkaround, insight.FixType)
	assert.Contains(t, insight.Workaround, "restart the connector")
	assert.InDelta(t, 0.6, insight.Confidence, 0.001)

	none := g.Insight(&models.Ticket{Status: "Open", Description: "still investigating"}, ref, nil)
	assert.False(t, none.HasFix)
	assert.Zero(t, none.Confidence)
}

func threadComments() []models.Comment {
	return []models.Comment{
		{ID: "1", Author: "Ana", Body: "Reproduced on staging with 500 users. The pool is exhausted due to a missing connection release in the export job."},
		{ID: "2", Author: "Ben", Body: "Fixed by releasing connections in a deferred close. Deployed to production and verified!"},
		{ID: "3", Author: "Ana", Body: "As a temporary workaround, raise the pool size.\nNext step: add a leak detector"},
	}
}

func TestAnalyzeComments(t *testing.T) {
	g := newGenerator()

	got := g.AnalyzeComments(threadComments())
	require.NotNil(t, got)
	assert.Equal(t, 3, got.CommentCount)
	assert.Equal(t, []string{"Ana", "Ben"}, got.Participants)
	assert.Equal(t, []string{"Fixed by releasing connections in a deferred close"}, got.Solutions)
	assert.Equal(t, []string{"As a temporary workaround, raise the pool size"}, got.Workarounds)
	assert.Equal(t, []string{"The pool is exhausted due to a missing connection release in the export job"}, got.RootCauses)
	assert.Equal(t, []string{"Reproduced on staging with 500 users", "Deployed to production and verified"}, got.StatusUpdates)
	assert.Equal(t, []string{"Next step: add a leak detector"}, got.NextSteps)

	assert.Nil(t, g.AnalyzeComments(nil))
}

func TestAnalyzeComments_CapsAndDedupes(t *testing.T) {
	g := newGenerator()
	var comments []models.Comment
	for range 8 {
		comments = append(comments, models.Comment{Body: "Fixed the export job retry loop"})
	}
	comments = append(comments, models.Comment{Body: "Fixed"})
	for i := range 6 {
		comments = append(comments, models.Comment{Body: strings.Repeat("x", i+1) + " fixed the export job"})
	}

	got := g.AnalyzeComments(comments)
	assert.Len(t, got.Solutions, maxCommentFindings)
	assert.Equal(t, "Fixed the export job retry loop", got.Solutions[0])
	assert.NotContains(t, got.Solutions, "Fixed")
	assert.Empty(t, got.Participants)
}

func TestInsight_FromComments(t *testing.T) {
	g := newGenerator()
	cand := &models.Ticket{Status: "Done", IssueType: "Bug", Summary: "Connection pool exhausted"}
	ref := &models.Ticket{IssueType: "Bug", Summary: "Connection pool exhaustion"}

	insight := g.Insight(cand, ref, threadComments())
	assert.True(t, insight.HasFix)
	assert.Equal(t, models.FixTypeResolved, insight.FixType)
	assert.Contains(t, insight.Solution, "fixed by releasing connections")
	assert.Contains(t, insight.RootCause, "due to a missing connection release")
	assert.Contains(t, insight.Workaround, "temporary workaround")
	require.NotNil(t, insight.Comments)
	assert.Equal(t, 3, insight.Comments.CommentCount)

	bare := g.Insight(cand, ref, nil)
	assert.Nil(t, bare.Comments)
	assert.Empty(t, bare.Solution)
}

func TestExtractContext(t *testing.T) {
	text := strings.Repeat("a", 150) + " workaround " + strings.Repeat("ü", 150)
	got := ExtractContext(text, "workaround")
	require.NotEmpty(t, got)
	assert.Contains(t, got, "workaround")
	assert.Len(t, []rune(got), 2*contextRadius+len("workaround"))

	assert.Empty(t, ExtractContext("nothing here", "workaround"))
	assert.Empty(t, ExtractContext("anything", ""))
}
