package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ====== GOOD SCENARIOS ======

func TestAnalysisError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAnalysisError(KindUpstreamFetch, "PLAT-1", "select", "all queries failed", cause)
	wrapped := fmt.Errorf("analyze: %w", err)

	assert.ErrorIs(t, wrapped, ErrUpstreamFetch)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, ErrInput)

	var ae *AnalysisError
	assert.ErrorAs(t, wrapped, &ae)
	assert.Equal(t, "PLAT-1", ae.ReferenceKey)
	assert.Equal(t, "upstream_fetch error at select for PLAT-1: all queries failed: connection refused", err.Error())
}

func TestTicket_ProjectKey(t *testing.T) {
	assert.Equal(t, "PLAT", (&Ticket{Key: "PLAT-12"}).ProjectKey())
	assert.Equal(t, "XOP", (&Ticket{Key: "PLAT-12", Project: "XOP"}).ProjectKey())
	assert.Equal(t, "MY-APP", ProjectFromKey("MY-APP-3"))
}

func TestTicket_Status(t *testing.T) {
	assert.True(t, (&Ticket{Status: " Done "}).IsResolved())
	assert.False(t, (&Ticket{Status: "In Progress"}).IsResolved())
	assert.True(t, (&Ticket{Status: "Ready for QA"}).IsInProgress())
}

func TestTicket_EscalationWeight(t *testing.T) {
	tk := &Ticket{
		Labels:    []string{"Escalated", "customer"},
		Priority:  "High",
		Status:    "Blocked",
		IssueType: "Bug",
	}
	assert.Equal(t, 30+25+20+10, tk.EscalationWeight())

	capped := &Ticket{
		Labels:    []string{"escalated", "urgent", "critical"},
		Priority:  "Highest",
		IssueType: "bug",
	}
	assert.Equal(t, 100, capped.EscalationWeight())
}

// ====== BAD SCENARIOS ======

func TestProjectFromKey_Malformed(t *testing.T) {
	assert.Empty(t, ProjectFromKey("PLAT"))
	assert.Empty(t, ProjectFromKey("-12"))
	assert.Equal(t, 0, (&Ticket{}).EscalationWeight())
}
