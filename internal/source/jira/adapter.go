package jira

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/pkg/models"
)

// MaxComments caps the comments fetched per ticket.
const MaxComments = 200

// Adapter exposes a Jira client as a source.TicketSource and
// source.CommentSource.
type Adapter struct {
	client *Client
}

// NewAdapter wraps a client.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

// Search implements source.TicketSource.
func (a *Adapter) Search(ctx context.Context, q source.Query, maxResults int, fields []string) ([]models.Ticket, error) {
	if len(fields) == 0 {
		fields = source.DefaultFields
	}
	jql := BuildJQL(q)
	log.Debug().Str("jql", jql).Int("maxResults", maxResults).Msg("Searching Jira")

	issues, err := a.client.SearchIssues(ctx, jql, maxResults, fields)
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, len(issues))
	for i := range issues {
		tickets = append(tickets, ToTicket(&issues[i]))
	}
	return tickets, nil
}

// Get implements source.TicketSource.
func (a *Adapter) Get(ctx context.Context, key string) (*models.Ticket, error) {
	issue, err := a.client.GetIssue(ctx, key, source.DefaultFields)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, source.ErrNotFound
		}
		return nil, err
	}
	t := ToTicket(issue)
	return &t, nil
}

// Comments implements source.CommentSource.
func (a *Adapter) Comments(ctx context.Context, key string) ([]models.Comment, error) {
	raw, err := a.client.GetComments(ctx, key, MaxComments)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, source.ErrNotFound
		}
		return nil, err
	}

	comments := make([]models.Comment, 0, len(raw))
	for i := range raw {
		comments = append(comments, ToComment(&raw[i]))
	}
	return comments, nil
}

// ToComment converts a Jira comment to the domain model.
func ToComment(c *Comment) models.Comment {
	out := models.Comment{
		ID:   c.ID,
		Body: DescriptionToPlainText(c.Body),
	}
	if c.Author != nil {
		out.Author = c.Author.DisplayName
	}
	if ts, err := ParseTimestamp(c.Created); err == nil {
		out.Created = ts
	}
	return out
}

// ToTicket converts a Jira issue to the domain model.
func ToTicket(issue *Issue) models.Ticket {
	f := issue.Fields
	t := models.Ticket{
		Key:         issue.Key,
		Summary:     f.Summary,
		Description: DescriptionToPlainText(f.Description),
		Labels:      f.Labels,
		IssueType:   name(f.IssueType),
		Priority:    name(f.Priority),
		Status:      name(f.Status),
		Resolution:  name(f.Resolution),
	}
	if f.Project != nil {
		t.Project = f.Project.Key
	}
	if t.Project == "" {
		t.Project = models.ProjectFromKey(issue.Key)
	}
	if f.Assignee != nil {
		t.Assignee = f.Assignee.DisplayName
	}
	if f.Reporter != nil {
		t.Reporter = f.Reporter.DisplayName
	}
	for _, c := range f.Components {
		t.Components = append(t.Components, c.Name)
	}
	if ts, err := ParseTimestamp(f.Created); err == nil {
		t.Created = ts
	}
	if ts, err := ParseTimestamp(f.Updated); err == nil {
		t.Updated = ts
	}
	return t
}

func name(f *NamedField) string {
	if f == nil {
		return ""
	}
	return f.Name
}
