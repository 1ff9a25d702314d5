// Package memory provides an in-process ticket source backed by a slice of
// tickets, for tests, demos and fixture files.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/internal/textnorm"
	"github.com/thebtf/ticketsim/pkg/models"
)

// Source evaluates source.Query filters in memory.
type Source struct {
	// FailSearch, when set, is consulted before every search; a non-nil
	// result is returned as the search error.
	FailSearch func(q source.Query) error
	// FailComments, when set, is consulted before every comment fetch.
	FailComments func(key string) error

	tickets  []models.Ticket
	comments map[string][]models.Comment
	queries  []source.Query
	mu       sync.RWMutex
}

// fixtureTicket is one entry of a fixture file: a ticket and its comments.
type fixtureTicket struct {
	models.Ticket
	Comments []models.Comment `json:"comments,omitempty"`
}

// New creates a source holding the given tickets.
func New(tickets ...models.Ticket) *Source {
	s := &Source{}
	s.Add(tickets...)
	return s
}

// LoadFile reads a JSON array of tickets. Each entry may carry a "comments"
// array alongside the ticket fields.
func LoadFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tickets %s: %w", path, err)
	}
	var entries []fixtureTicket
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse tickets %s: %w", path, err)
	}
	s := New()
	for _, e := range entries {
		s.Add(e.Ticket)
		if len(e.Comments) > 0 {
			s.AddComments(e.Key, e.Comments...)
		}
	}
	return s, nil
}

// AddComments appends comments to the ticket with the given key.
func (s *Source) AddComments(key string, comments ...models.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.comments == nil {
		s.comments = make(map[string][]models.Comment)
	}
	k := strings.ToUpper(key)
	s.comments[k] = append(s.comments[k], comments...)
}

// Add appends tickets, filling Project from the key when missing.
func (s *Source) Add(tickets ...models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		if t.Project == "" {
			t.Project = models.ProjectFromKey(t.Key)
		}
		s.tickets = append(s.tickets, t)
	}
}

// Queries returns every query received so far, in order.
func (s *Source) Queries() []source.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]source.Query(nil), s.queries...)
}

// Search implements source.TicketSource. Results are ordered by creation
// time, newest first; the fields list is ignored.
func (s *Source) Search(ctx context.Context, q source.Query, maxResults int, _ []string) ([]models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.queries = append(s.queries, q)
	fail := s.FailSearch
	s.mu.Unlock()

	if fail != nil {
		if err := fail(q); err != nil {
			return nil, err
		}
	}

	words := queryWords(q.Text)

	s.mu.RLock()
	var out []models.Ticket
	for _, t := range s.tickets {
		if Matches(&t, q, words) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

// Get implements source.TicketSource.
func (s *Source) Get(ctx context.Context, key string) (*models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if strings.EqualFold(t.Key, key) {
			found := t
			return &found, nil
		}
	}
	return nil, source.ErrNotFound
}

// Comments implements source.CommentSource. A known ticket without comments
// yields an empty list.
func (s *Source) Comments(ctx context.Context, key string) ([]models.Comment, error) {
	if _, err := s.Get(ctx, key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	fail := s.FailComments
	out := append([]models.Comment(nil), s.comments[strings.ToUpper(key)]...)
	s.mu.RUnlock()

	if fail != nil {
		if err := fail(key); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Matches reports whether t satisfies q. words are the cleaned text words
// of q.Text; every word longer than two characters must occur in the ticket.
func Matches(t *models.Ticket, q source.Query, words []string) bool {
	if !anyEqual(q.Projects, t.ProjectKey()) {
		return false
	}
	if !anyEqual(q.IssueTypes, t.IssueType) {
		return false
	}
	if !anyOverlap(q.Components, t.Components) {
		return false
	}
	if !anyOverlap(q.Labels, t.Labels) {
		return false
	}
	if len(words) == 0 {
		return true
	}
	text := " " + textnorm.Clean(t.Text()) + " "
	for _, w := range words {
		if !strings.Contains(text, " "+w+" ") {
			return false
		}
	}
	return true
}

func queryWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(textnorm.Clean(text)) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	return words
}

// anyEqual is true when allowed is empty or contains v (case-insensitive).
func anyEqual(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return true
		}
	}
	return false
}

func anyOverlap(allowed, values []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, v := range values {
		if anyEqual(allowed, v) {
			return true
		}
	}
	return false
}
