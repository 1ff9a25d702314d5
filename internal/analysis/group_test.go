package analysis

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/internal/source/memory"
	"github.com/thebtf/ticketsim/pkg/models"
)

func sixTickets() []models.Ticket {
	return []models.Ticket{
		{Key: "PLAT-1", Summary: "API timeout on server response", IssueType: "Bug"},
		{Key: "PLAT-2", Summary: "Dashboard chart colors wrong", IssueType: "Bug"},
		{Key: "PLAT-3", Summary: "API response timeout in checkout", IssueType: "Bug"},
		{Key: "PLAT-4", Summary: "Password reset email missing", IssueType: "Bug"},
		{Key: "PLAT-5", Summary: "Slow API response timeout", IssueType: "Bug"},
		{Key: "PLAT-6", Summary: "Mobile layout overlaps footer", IssueType: "Bug"},
	}
}

func TestGroup_InlineTickets(t *testing.T) {
	a := New(memory.New(), nil, nil, testConfig())

	run, err := a.Group(context.Background(), GroupRequest{Tickets: sixTickets(), Threshold: 0.3})
	require.NoError(t, err)

	assert.Equal(t, 6, run.TicketCnt)
	require.Len(t, run.Groups, 4)
	assert.Equal(t, 3, run.Singletons)

	first := run.Groups[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, []string{"PLAT-1", "PLAT-3", "PLAT-5"}, first.MemberKeys())
	assert.Equal(t, []string{"api", "response", "timeout"}, first.CommonKeywords)
	assert.InDelta(t, 0.75, first.Cohesion, 1e-9)
	assert.Equal(t, "Performance", first.Category)

	seen := make(map[string]bool)
	for i, g := range run.Groups {
		assert.Equal(t, i+1, g.ID)
		for _, k := range g.MemberKeys() {
			assert.False(t, seen[k], "ticket %s in two groups", k)
			seen[k] = true
		}
	}
	assert.Len(t, seen, 6)
	assert.Equal(t, "Authentication", run.Groups[2].Category)
}

func TestGroup_Deterministic(t *testing.T) {
	a := New(memory.New(), nil, nil, testConfig())
	req := GroupRequest{Tickets: sixTickets(), Threshold: 0.3}

	first, err := a.Group(context.Background(), req)
	require.NoError(t, err)
	for range 5 {
		again, err := a.Group(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGroup_FromQuery(t *testing.T) {
	src := memory.New(sixTickets()...)
	src.Add(models.Ticket{Key: "XOP-1", Summary: "API timeout on server response", IssueType: "Bug"})
	a := New(src, nil, nil, testConfig())

	run, err := a.Group(context.Background(), GroupRequest{
		Query: &source.Query{Projects: []string{"PLAT"}, IssueTypes: []string{"Bug"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, run.TicketCnt)
	assert.InDelta(t, DefaultGroupThreshold, run.Threshold, 1e-9)
}

func TestGroup_Errors(t *testing.T) {
	a := New(memory.New(), nil, nil, testConfig())

	_, err := a.Group(context.Background(), GroupRequest{})
	assert.ErrorIs(t, err, models.ErrInput)

	_, err = a.Group(context.Background(), GroupRequest{Tickets: sixTickets(), Threshold: 2})
	assert.ErrorIs(t, err, models.ErrInput)

	_, err = a.Group(context.Background(), GroupRequest{Tickets: sixTickets(), Threshold: math.NaN()})
	assert.ErrorIs(t, err, models.ErrInput)

	boom := errors.New("jira down")
	broken := New(brokenSource{err: boom}, nil, nil, testConfig())
	_, err = broken.Group(context.Background(), GroupRequest{Query: &source.Query{Projects: []string{"PLAT"}}})
	assert.ErrorIs(t, err, models.ErrUpstreamFetch)
	assert.ErrorIs(t, err, boom)
}
