// Package client talks to a running ticketsim worker over HTTP.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/thebtf/ticketsim/pkg/models"
)

const (
	// HealthCheckTimeout is the timeout for a single health probe.
	HealthCheckTimeout = 1 * time.Second

	// DefaultTimeout bounds analysis requests, which may run many searches.
	DefaultTimeout = 2 * time.Minute
)

// Options mirrors the analysis options accepted by the worker.
type Options struct {
	Threshold  float64 `json:"threshold,omitempty"`
	MaxResults int     `json:"max_results,omitempty"`
	NoCache    bool    `json:"no_cache,omitempty"`
}

// BatchItem is one entry of a batch reply.
type BatchItem struct {
	Run     *models.AnalysisRun `json:"run,omitempty"`
	Key     string              `json:"key"`
	Error   string              `json:"error,omitempty"`
	Skipped bool                `json:"skipped,omitempty"`
}

// BatchResult is the reply to a batch request.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
}

// GroupRequest asks the worker to group inline tickets or a query's results.
type GroupRequest struct {
	Query       *Query          `json:"query,omitempty"`
	Tickets     []models.Ticket `json:"tickets,omitempty"`
	Threshold   float64         `json:"threshold,omitempty"`
	MaxTickets  int             `json:"max_tickets,omitempty"`
	TopKeywords int             `json:"top_keywords,omitempty"`
}

// Query is the ticket filter of a GroupRequest.
type Query struct {
	Text       string   `json:"text,omitempty"`
	Projects   []string `json:"projects,omitempty"`
	IssueTypes []string `json:"issue_types,omitempty"`
	Components []string `json:"components,omitempty"`
	Labels     []string `json:"labels,omitempty"`
}

// StatusError is a non-2xx reply. Analysis carries the structured error
// when the worker reported one.
type StatusError struct {
	Analysis   *models.AnalysisError
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Analysis != nil {
		return fmt.Sprintf("worker returned %d: %s", e.StatusCode, e.Analysis.Error())
	}
	return fmt.Sprintf("worker returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the analysis error so errors.Is(err, models.ErrInput) works.
func (e *StatusError) Unwrap() error {
	if e.Analysis == nil {
		return nil
	}
	return e.Analysis
}

// Client is a worker API client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New creates a client for the worker at baseURL (e.g. http://127.0.0.1:37780).
// token is sent as a bearer token when non-empty.
func New(baseURL, token string) *Client {
	return &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// IsRunning checks if the worker is running and healthy.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil) == nil
}

// Version returns the version reported by the worker.
func (c *Client) Version(ctx context.Context) (string, error) {
	var body struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &body); err != nil {
		return "", err
	}
	return body.Version, nil
}

// WaitReady polls the health endpoint with exponential backoff until the
// worker answers or maxWait elapses.
func (c *Client) WaitReady(ctx context.Context, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait

	return backoff.Retry(func() error {
		if c.IsRunning(ctx) {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return errors.New("worker not ready")
	}, backoff.WithContext(b, ctx))
}

// Analyze runs one analysis on the worker.
func (c *Client) Analyze(ctx context.Context, key string, opts Options) (*models.AnalysisRun, error) {
	q := url.Values{}
	if opts.Threshold != 0 {
		q.Set("threshold", strconv.FormatFloat(opts.Threshold, 'f', -1, 64))
	}
	if opts.MaxResults != 0 {
		q.Set("max_results", strconv.Itoa(opts.MaxResults))
	}
	if opts.NoCache {
		q.Set("no_cache", "true")
	}

	path := "/api/analyze/" + url.PathEscape(key)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var run models.AnalysisRun
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// AnalyzeBatch analyzes several keys on the worker.
func (c *Client) AnalyzeBatch(ctx context.Context, keys []string, opts Options) (*BatchResult, error) {
	body := struct {
		Keys []string `json:"keys"`
		Options
	}{Keys: keys, Options: opts}

	var res BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/analyze/batch", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Group asks the worker to partition tickets into similarity groups.
func (c *Client) Group(ctx context.Context, req GroupRequest) (*models.GroupingRun, error) {
	var run models.GroupingRun
	if err := c.do(ctx, http.MethodPost, "/api/groups", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Stats returns the worker statistics document.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}

	var body struct {
		Analysis *models.AnalysisError `json:"analysis_error"`
		Error    string                `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		se.Analysis = body.Analysis
		if body.Error != "" {
			se.Message = body.Error
		}
	}
	return se
}
