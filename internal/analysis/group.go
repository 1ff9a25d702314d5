package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/pkg/models"
	"github.com/thebtf/ticketsim/pkg/similarity"
)

const (
	// DefaultGroupThreshold is the summary similarity needed to join a group.
	DefaultGroupThreshold = 0.3
	// DefaultGroupMaxTickets caps the tickets fetched for a query-based grouping run.
	DefaultGroupMaxTickets = 200
)

// GroupRequest describes a grouping run. Tickets are used as given; when
// empty, Query selects them from the ticket source.
type GroupRequest struct {
	Query       *source.Query   `json:"query,omitempty"`
	Tickets     []models.Ticket `json:"tickets,omitempty"`
	Threshold   float64         `json:"threshold,omitempty"`
	MaxTickets  int             `json:"max_tickets,omitempty"`
	TopKeywords int             `json:"top_keywords,omitempty"`
}

// Group partitions a ticket set into similarity groups and labels each
// group with a category.
func (a *Analyzer) Group(ctx context.Context, req GroupRequest) (*models.GroupingRun, error) {
	threshold := req.Threshold
	if threshold == 0 {
		threshold = a.cfg.GroupThreshold
	}
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, models.NewAnalysisError(models.KindInput, "", "validate",
			fmt.Sprintf("threshold %v outside [0, 1]", req.Threshold), nil)
	}

	tickets := req.Tickets
	if len(tickets) == 0 {
		if req.Query == nil || req.Query.IsEmpty() {
			return nil, models.NewAnalysisError(models.KindInput, "", "validate",
				"either tickets or a query is required", nil)
		}
		limit := req.MaxTickets
		if limit <= 0 || limit > a.cfg.GroupMaxTickets {
			limit = a.cfg.GroupMaxTickets
		}
		fetched, err := a.src.Search(ctx, *req.Query, limit, nil)
		if err != nil {
			return nil, models.NewAnalysisError(models.KindUpstreamFetch, "", "group_fetch",
				"failed to fetch tickets for grouping", err)
		}
		tickets = fetched
	}

	p := a.pipeline()
	groups := similarity.GroupTickets(tickets, p.norm.Tokens, similarity.GroupConfig{
		Threshold:   threshold,
		TopKeywords: req.TopKeywords,
	})

	run := &models.GroupingRun{
		Groups:    groups,
		Threshold: threshold,
		TicketCnt: len(tickets),
	}
	for i := range run.Groups {
		g := &run.Groups[i]
		texts := make([]string, len(g.Members))
		for j := range g.Members {
			texts[j] = g.Members[j].Text()
		}
		g.Category = p.recommends.Categorize(strings.Join(texts, "\n"))
		if g.Size() == 1 {
			run.Singletons++
		}
	}

	atomic.AddInt64(&a.stats.GroupingRuns, 1)
	zerolog.Ctx(ctx).Info().
		Int("tickets", run.TicketCnt).
		Int("groups", len(run.Groups)).
		Int("singletons", run.Singletons).
		Float64("threshold", threshold).
		Msg("Grouping complete")

	return run, nil
}
