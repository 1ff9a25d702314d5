// Package models contains domain models for ticketsim.
package models

import (
	"strings"
	"time"
)

// Ticket is an issue-tracker ticket as fetched from a ticket source.
// Tickets are treated as immutable once fetched.
type Ticket struct {
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Key         string    `json:"key"`
	Project     string    `json:"project"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	IssueType   string    `json:"issue_type"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Assignee    string    `json:"assignee,omitempty"`
	Reporter    string    `json:"reporter,omitempty"`
	Resolution  string    `json:"resolution,omitempty"`
	Components  []string  `json:"components,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
}

// Comment is one comment on a ticket with its body as plain text.
type Comment struct {
	Created time.Time `json:"created"`
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Body    string    `json:"body"`
}

// ProjectFromKey returns the project prefix of a ticket key ("PLAT-12" -> "PLAT").
func ProjectFromKey(key string) string {
	idx := strings.LastIndex(key, "-")
	if idx <= 0 {
		return ""
	}
	return key[:idx]
}

// ProjectKey returns the ticket's project, falling back to the key prefix.
func (t *Ticket) ProjectKey() string {
	if t.Project != "" {
		return t.Project
	}
	return ProjectFromKey(t.Key)
}

// Text returns summary and description joined for whole-ticket analysis.
func (t *Ticket) Text() string {
	if t.Description == "" {
		return t.Summary
	}
	return t.Summary + "\n" + t.Description
}

// IsResolved reports whether the ticket is in a terminal, fixed state.
func (t *Ticket) IsResolved() bool {
	switch strings.ToLower(strings.TrimSpace(t.Status)) {
	case "closed", "resolved", "done", "successfully deployed":
		return true
	}
	return false
}

// IsInProgress reports whether work on the ticket is ongoing.
func (t *Ticket) IsInProgress() bool {
	switch strings.ToLower(strings.TrimSpace(t.Status)) {
	case "open", "in progress", "ready for qa", "testing":
		return true
	}
	return false
}

// escalationLabelHints mark labels that signal an escalated ticket.
var escalationLabelHints = []string{"escalated", "urgent", "critical", "high_priority"}

// escalationStatusHints mark statuses that signal a stalled or escalated ticket.
var escalationStatusHints = []string{"blocked", "waiting", "on hold", "escalated"}

// priorityEscalation maps lowercase priority names to their escalation weight.
var priorityEscalation = map[string]int{
	"highest": 35,
	"high":    25,
	"medium":  15,
	"low":     5,
}

// EscalationWeight estimates how escalated a ticket is on a 0-100 scale.
//
// Weight = 30 per escalation label + priority weight + 20 for a stalled status
// + 10 for bugs, capped at 100.
func (t *Ticket) EscalationWeight() int {
	weight := 0
	for _, label := range t.Labels {
		l := strings.ToLower(label)
		for _, hint := range escalationLabelHints {
			if strings.Contains(l, hint) {
				weight += 30
				break
			}
		}
	}

	weight += priorityEscalation[strings.ToLower(t.Priority)]

	status := strings.ToLower(t.Status)
	for _, hint := range escalationStatusHints {
		if strings.Contains(status, hint) {
			weight += 20
			break
		}
	}

	if strings.EqualFold(t.IssueType, "bug") {
		weight += 10
	}

	return min(weight, 100)
}
