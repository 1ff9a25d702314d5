// Package selector builds search queries for a reference ticket, fetches
// candidates from a ticket source and applies the subject-overlap gate.
package selector

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thebtf/ticketsim/internal/scoring"
	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/internal/subject"
	"github.com/thebtf/ticketsim/pkg/models"
)

// Config controls candidate selection.
type Config struct {
	// Projects is the allow-list of related projects.
	Projects []string `json:"projects"`
	// IssueTypes is the allow-list of defect-like issue types.
	IssueTypes []string `json:"issue_types"`
	// MaxQueries caps the number of seeded sub-queries.
	MaxQueries int `json:"max_queries"`
	// ResultsPerQuery caps the results requested per sub-query.
	ResultsPerQuery int `json:"results_per_query"`
}

// DefaultConfig returns the default selection configuration.
func DefaultConfig() Config {
	return Config{
		Projects:        []string{"PLAT", "XOP"},
		IssueTypes:      []string{"Bug", "Customer-Incident", "Customer-Defect"},
		MaxQueries:      25,
		ResultsPerQuery: 50,
	}
}

// Profiler builds the text profile used for gating and scoring.
type Profiler interface {
	Profile(t *models.Ticket) *scoring.Profile
}

// Selection is the outcome of one selection pass.
type Selection struct {
	// Pool holds every distinct fetched ticket except the reference, before gating.
	Pool []models.Ticket
	// Gated holds the profiles of pool tickets sharing a subject with the reference.
	Gated []*scoring.Profile
	// Queries are the seeded query strings in issue order.
	Queries       []string
	Diagnostics   []models.Diagnostic
	FailedQueries int
}

// Selector fetches and gates candidates.
type Selector struct {
	src      source.TicketSource
	profiler Profiler
	cfg      Config
}

// New creates a selector.
func New(src source.TicketSource, profiler Profiler, cfg Config) *Selector {
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = DefaultConfig().MaxQueries
	}
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = DefaultConfig().ResultsPerQuery
	}
	return &Selector{src: src, profiler: profiler, cfg: cfg}
}

// SeedQueries returns the deduplicated query strings for a reference: the
// full summary, each subject unit, then each summary n-gram, capped at max.
func SeedQueries(ref *scoring.Profile, max int) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] || len(out) >= max {
			return
		}
		seen[key] = true
		out = append(out, q)
	}

	add(ref.Ticket.Summary)
	for _, unit := range ref.Subjects.Sorted() {
		add(unit)
	}
	for _, g := range subject.NGrams(ref.SummaryTokens, 2) {
		add(g)
	}
	for _, g := range subject.NGrams(ref.SummaryTokens, 3) {
		add(g)
	}
	return out
}

// Select runs the seeded sub-queries sequentially. A failed sub-query is
// recorded as a diagnostic and skipped; when every sub-query fails the
// selection fails with an upstream_fetch AnalysisError.
func (s *Selector) Select(ctx context.Context, ref *scoring.Profile) (*Selection, error) {
	logger := zerolog.Ctx(ctx)
	refKey := ref.Ticket.Key
	sel := &Selection{Queries: SeedQueries(ref, s.cfg.MaxQueries)}

	seen := map[string]bool{strings.ToUpper(refKey): true}
	for _, q := range sel.Queries {
		if err := ctx.Err(); err != nil {
			return nil, models.NewAnalysisError(models.KindUpstreamFetch, refKey, "select", "selection cancelled", err)
		}

		tickets, err := s.search(ctx, ref, q)
		if err != nil {
			sel.FailedQueries++
			sel.Diagnostics = append(sel.Diagnostics, models.Diagnostic{
				Kind:         models.KindUpstreamFetch,
				ReferenceKey: refKey,
				Stage:        "select",
				Message:      fmt.Sprintf("sub-query %q failed: %v", q, err),
			})
			logger.Warn().Err(err).Str("reference", refKey).Str("query", q).Msg("Sub-query failed, skipping")
			continue
		}

		for _, t := range tickets {
			k := strings.ToUpper(t.Key)
			if seen[k] {
				continue
			}
			seen[k] = true
			sel.Pool = append(sel.Pool, t)
		}
	}

	if len(sel.Queries) > 0 && sel.FailedQueries == len(sel.Queries) {
		return nil, models.NewAnalysisError(models.KindUpstreamFetch, refKey, "select",
			fmt.Sprintf("all %d sub-queries failed", len(sel.Queries)), nil)
	}

	for i := range sel.Pool {
		p := s.profiler.Profile(&sel.Pool[i])
		if ref.Subjects.Intersects(p.Subjects) {
			sel.Gated = append(sel.Gated, p)
		}
	}

	logger.Debug().
		Str("reference", refKey).
		Int("queries", len(sel.Queries)).
		Int("failed", sel.FailedQueries).
		Int("pool", len(sel.Pool)).
		Int("gated", len(sel.Gated)).
		Msg("Candidate selection complete")

	return sel, nil
}

// search issues the constrained query and, when it returns nothing, one
// fallback scoped to the reference's own project without a type restriction.
func (s *Selector) search(ctx context.Context, ref *scoring.Profile, text string) ([]models.Ticket, error) {
	constrained := source.Query{
		Projects:   s.cfg.Projects,
		IssueTypes: s.cfg.IssueTypes,
		Text:       text,
	}
	tickets, err := s.src.Search(ctx, constrained, s.cfg.ResultsPerQuery, nil)
	if err != nil {
		return nil, err
	}
	if len(tickets) > 0 {
		return tickets, nil
	}

	project := ref.Ticket.ProjectKey()
	if project == "" {
		return nil, nil
	}
	return s.src.Search(ctx, source.Query{Projects: []string{project}, Text: text}, s.cfg.ResultsPerQuery, nil)
}
