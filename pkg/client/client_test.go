package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ticketsim/internal/analysis"
	"github.com/thebtf/ticketsim/internal/app"
	"github.com/thebtf/ticketsim/internal/cache"
	"github.com/thebtf/ticketsim/internal/config"
	"github.com/thebtf/ticketsim/internal/source/memory"
	"github.com/thebtf/ticketsim/internal/vocab"
	"github.com/thebtf/ticketsim/internal/worker"
	"github.com/thebtf/ticketsim/pkg/models"
)

func newWorker(t *testing.T, token string) *httptest.Server {
	t.Helper()

	src := memory.New(
		models.Ticket{Key: "PLAT-1", Summary: "Database connection timeout in production", IssueType: "Bug"},
		models.Ticket{Key: "PLAT-2", Summary: "Database connection pool exhaustion", IssueType: "Bug"},
		models.Ticket{Key: "PLAT-3", Summary: "Password reset email missing", IssueType: "Bug"},
	)

	cfg := config.Default()
	cfg.AuthToken = token
	acfg := analysis.DefaultConfig()
	acfg.BatchDelay = 0
	store := vocab.NewStaticStore(vocab.Default())

	svc := worker.NewService("v1.2.3", &app.App{
		Config:   cfg,
		Source:   src,
		Vocab:    store,
		Cache:    cache.Nop{},
		Analyzer: analysis.New(src, store, cache.Nop{}, acfg),
	})

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// ====== GOOD SCENARIOS ======

func TestClient_HealthAndVersion(t *testing.T) {
	srv := newWorker(t, "")
	c := New(srv.URL+"/", "")

	assert.True(t, c.IsRunning(context.Background()))
	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)
	assert.NoError(t, c.WaitReady(context.Background(), time.Second))
}

func TestClient_Analyze(t *testing.T) {
	c := New(newWorker(t, "").URL, "")

	run, err := c.Analyze(context.Background(), "plat-1", Options{MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, "PLAT-1", run.ReferenceKey)
	assert.Equal(t, []string{"PLAT-2"}, run.CandidateKeys())

	run, err = c.Analyze(context.Background(), "PLAT-1", Options{Threshold: 0.9})
	require.NoError(t, err)
	assert.True(t, run.FallbackApplied)
	assert.InDelta(t, 0.8, run.ThresholdUsed, 1e-9)
}

func TestClient_AnalyzeBatch(t *testing.T) {
	c := New(newWorker(t, "").URL, "")

	res, err := c.AnalyzeBatch(context.Background(), []string{"PLAT-1", "PLAT-404"}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.Items[1].Error)
}

func TestClient_Group(t *testing.T) {
	c := New(newWorker(t, "").URL, "")

	run, err := c.Group(context.Background(), GroupRequest{Query: &Query{Projects: []string{"PLAT"}, Text: "password"}})
	require.NoError(t, err)
	assert.Equal(t, 1, run.TicketCnt)
	require.Len(t, run.Groups, 1)
	assert.Equal(t, "Authentication", run.Groups[0].Category)
	assert.Equal(t, 1, run.Singletons)
}

func TestClient_StatsWithToken(t *testing.T) {
	srv := newWorker(t, "s3cret")

	_, err := New(srv.URL, "").Stats(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)

	stats, err := New(srv.URL, "s3cret").Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", stats["version"])
	assert.Contains(t, stats, "analysis")
}

// ====== BAD SCENARIOS ======

func TestClient_AnalysisErrorSurfaces(t *testing.T) {
	c := New(newWorker(t, "").URL, "")

	_, err := c.Analyze(context.Background(), "PLAT-404", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInput)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.NotNil(t, se.Analysis)
	assert.Equal(t, "fetch_reference", se.Analysis.Stage)
}

func TestClient_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "")
	assert.False(t, c.IsRunning(context.Background()))
	assert.Error(t, c.WaitReady(context.Background(), 300*time.Millisecond))
}
