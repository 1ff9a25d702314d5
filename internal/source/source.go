// Package source defines the ticket source contract consumed by the analysis core.
package source

import (
	"context"
	"errors"
	"strings"

	"github.com/thebtf/ticketsim/pkg/models"
)

// ErrNotFound is returned by Get when no ticket has the requested key.
var ErrNotFound = errors.New("ticket not found")

// DefaultFields is the field list requested when the caller passes none.
var DefaultFields = []string{
	"key", "summary", "description", "issuetype", "priority", "status",
	"components", "labels", "project", "assignee", "reporter", "created",
	"updated", "resolution",
}

// Query is a structured boolean filter. Non-empty fields are combined with
// AND; values within one field are combined with OR. Text matches the
// summary or the description.
type Query struct {
	Text       string   `json:"text,omitempty"`
	Projects   []string `json:"projects,omitempty"`
	IssueTypes []string `json:"issue_types,omitempty"`
	Components []string `json:"components,omitempty"`
	Labels     []string `json:"labels,omitempty"`
}

// IsEmpty reports whether the query has no constraints at all.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == "" && len(q.Projects) == 0 &&
		len(q.IssueTypes) == 0 && len(q.Components) == 0 && len(q.Labels) == 0
}

// TicketSource fetches tickets from an issue tracker. The adapter owns the
// translation of Query into its backend's query language, and any retry of
// transient failures.
type TicketSource interface {
	// Search returns up to maxResults tickets matching q. A nil fields list
	// requests DefaultFields.
	Search(ctx context.Context, q Query, maxResults int, fields []string) ([]models.Ticket, error)

	// Get fetches one ticket by key, returning ErrNotFound when it does not exist.
	Get(ctx context.Context, key string) (*models.Ticket, error)
}

// CommentSource is implemented by sources that can list a ticket's comments.
// The analysis core type-asserts for it and skips comment mining otherwise.
type CommentSource interface {
	// Comments returns the ticket's comments oldest first, or ErrNotFound.
	Comments(ctx context.Context, key string) ([]models.Comment, error)
}
