package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/pkg/models"
)

func fixtures() []models.Ticket {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []models.Ticket{
		{Key: "PLAT-1", Summary: "Database connection timeout", IssueType: "Bug", Components: []string{"Backend"}, Created: base},
		{Key: "PLAT-2", Summary: "Dashboard slow", Description: "database connection is fine", IssueType: "Story", Created: base.Add(time.Hour)},
		{Key: "XOP-1", Summary: "Login fails", IssueType: "Customer-Incident", Labels: []string{"urgent"}, Created: base.Add(2 * time.Hour)},
	}
}

func keys(tickets []models.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.Key
	}
	return out
}

func TestSearch(t *testing.T) {
	src := New(fixtures()...)
	ctx := context.Background()

	tests := []struct {
		name     string
		query    source.Query
		expected []string
	}{
		{"no filter, newest first", source.Query{}, []string{"XOP-1", "PLAT-2", "PLAT-1"}},
		{"project", source.Query{Projects: []string{"plat"}}, []string{"PLAT-2", "PLAT-1"}},
		{"project and type", source.Query{Projects: []string{"PLAT", "XOP"}, IssueTypes: []string{"Bug", "Customer-Incident"}}, []string{"XOP-1", "PLAT-1"}},
		{"text in summary or description", source.Query{Text: "database connection"}, []string{"PLAT-2", "PLAT-1"}},
		{"text words must all match", source.Query{Text: "database login"}, nil},
		{"component", source.Query{Components: []string{"backend"}}, []string{"PLAT-1"}},
		{"label", source.Query{Labels: []string{"urgent"}}, []string{"XOP-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.Search(ctx, tt.query, 10, nil)
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, keys(got))
		})
	}
}

func TestSearch_MaxResultsAndFailures(t *testing.T) {
	src := New(fixtures()...)

	got, err := src.Search(context.Background(), source.Query{}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"XOP-1"}, keys(got))

	boom := errors.New("boom")
	src.FailSearch = func(q source.Query) error {
		if q.Text == "fail" {
			return boom
		}
		return nil
	}
	_, err = src.Search(context.Background(), source.Query{Text: "fail"}, 10, nil)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, src.Queries(), 2)
}

func TestGet(t *testing.T) {
	src := New(fixtures()...)

	tk, err := src.Get(context.Background(), "plat-1")
	require.NoError(t, err)
	assert.Equal(t, "PLAT-1", tk.Key)
	assert.Equal(t, "PLAT", tk.Project)

	_, err = src.Get(context.Background(), "PLAT-99")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"key":"PLAT-7","summary":"API timeout","issue_type":"Bug"}]`), 0600))

	src, err := LoadFile(path)
	require.NoError(t, err)
	tk, err := src.Get(context.Background(), "PLAT-7")
	require.NoError(t, err)
	assert.Equal(t, "Bug", tk.IssueType)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFile_Comments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	data := `[{"key":"PLAT-7","summary":"API timeout","comments":[{"id":"1","author":"Ana","body":"Fixed by raising the gateway timeout"}]}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	src, err := LoadFile(path)
	require.NoError(t, err)
	tk, err := src.Get(context.Background(), "PLAT-7")
	require.NoError(t, err)
	assert.Equal(t, "API timeout", tk.Summary)

	comments, err := src.Comments(context.Background(), "plat-7")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Ana", comments[0].Author)
}

func TestComments(t *testing.T) {
	src := New(fixtures()...)
	ctx := context.Background()
	src.AddComments("PLAT-1", models.Comment{ID: "1", Body: "Reproduced"}, models.Comment{ID: "2", Body: "Deployed fix"})

	comments, err := src.Comments(ctx, "PLAT-1")
	require.NoError(t, err)
	assert.Equal(t, "Deployed fix", comments[1].Body)

	none, err := src.Comments(ctx, "PLAT-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = src.Comments(ctx, "PLAT-404")
	assert.ErrorIs(t, err, source.ErrNotFound)

	boom := errors.New("comments unavailable")
	src.FailComments = func(string) error { return boom }
	_, err = src.Comments(ctx, "PLAT-1")
	assert.ErrorIs(t, err, boom)
}

var (
	_ source.TicketSource  = (*Source)(nil)
	_ source.CommentSource = (*Source)(nil)
)
