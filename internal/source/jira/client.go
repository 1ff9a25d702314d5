// Package jira implements the ticket source over the Jira Cloud REST API v3.
package jira

import (
	"context"
	"encoding/base64"
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
	"github.com/rs/zerolog/log"
)

// Issue represents a Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue.
type IssueFields struct {
	Summary     string           `json:"summary"`
	Description json.RawMessage  `json:"description"` // ADF document or plain text
	Status      *NamedField      `json:"status"`
	Priority    *NamedField      `json:"priority"`
	IssueType   *NamedField      `json:"issuetype"`
	Resolution  *NamedField      `json:"resolution"`
	Project     *ProjectField    `json:"project"`
	Assignee    *UserField       `json:"assignee"`
	Reporter    *UserField       `json:"reporter"`
	Components  []NamedField     `json:"components"`
	Labels      []string         `json:"labels"`
	Created     string           `json:"created"`
	Updated     string           `json:"updated"`
}

// NamedField is any Jira field that carries an id and a display name
// (status, priority, issue type, resolution, component).
type NamedField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectField represents a Jira project.
type ProjectField struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// UserField represents a Jira user.
type UserField struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// SearchResult represents a response of the enhanced JQL search endpoint.
type SearchResult struct {
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken"`
	IsLast        bool    `json:"isLast"`
}

// Comment is a Jira issue comment.
type Comment struct {
	ID      string          `json:"id"`
	Author  *UserField      `json:"author"`
	Body    json.RawMessage `json:"body"` // ADF document or plain text
	Created string          `json:"created"`
	Updated string          `json:"updated"`
}

// CommentPage is one page of the issue comment endpoint.
type CommentPage struct {
	Comments   []Comment `json:"comments"`
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
}

// APIError is a non-success HTTP response from Jira.
type APIError struct {
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("jira API returned %d: %s", e.StatusCode, body)
}

// Retryable reports whether the status is transient (rate limit or server error).
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

const (
	// searchPageSize is the largest page the search endpoint is asked for.
	searchPageSize = 50
	// commentPageSize is the page size asked of the comment endpoint.
	commentPageSize = 100
)

// Client provides HTTP access to a Jira instance.
type Client struct {
	HTTPClient *http.Client
	URL        string
	Username   string
	APIToken   string
	// MaxRetries bounds retries of transient failures per request.
	MaxRetries uint64
	// MaxElapsed bounds the total time spent retrying one request.
	MaxElapsed time.Duration
}

// NewClient creates a new Jira client.
func NewClient(url, username, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		URL:        strings.TrimSuffix(url, "/"),
		Username:   username,
		APIToken:   apiToken,
		MaxRetries: 3,
		MaxElapsed: 20 * time.Second,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SearchIssues runs a JQL query against /rest/api/3/search/jql, following
// page tokens until maxResults issues are collected or the last page is reached.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int, fields []string) ([]Issue, error) {
	var all []Issue
	token := ""

	for maxResults <= 0 || len(all) < maxResults {
		pageSize := searchPageSize
		if maxResults > 0 && maxResults-len(all) < pageSize {
			pageSize = maxResults - len(all)
		}

		params := url.Values{
			"jql":        {jql},
			"fields":     {strings.Join(fields, ",")},
			"maxResults": {strconv.Itoa(pageSize)},
		}
		if token != "" {
			params.Set("nextPageToken", token)
		}

		apiURL := fmt.Sprintf("%s/rest/api/3/search/jql?%s", c.URL, params.Encode())
		body, err := c.doRequest(ctx, http.MethodGet, apiURL)
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result SearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		all = append(all, result.Issues...)
		if result.IsLast || result.NextPageToken == "" || len(result.Issues) == 0 {
			break
		}
		token = result.NextPageToken
	}

	if maxResults > 0 && len(all) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

// GetIssue fetches a single Jira issue by key (e.g., "PLAT-123").
func (c *Client) GetIssue(ctx context.Context, key string, fields []string) (*Issue, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s",
		c.URL, url.PathEscape(key), url.QueryEscape(strings.Join(fields, ",")))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	return &issue, nil
}

// GetComments fetches up to maxComments comments of an issue, oldest first,
// following startAt offsets. maxComments <= 0 fetches every comment.
func (c *Client) GetComments(ctx context.Context, key string, maxComments int) ([]Comment, error) {
	var all []Comment
	for maxComments <= 0 || len(all) < maxComments {
		params := url.Values{
			"startAt":    {strconv.Itoa(len(all))},
			"maxResults": {strconv.Itoa(commentPageSize)},
			"orderBy":    {"created"},
		}
		apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment?%s", c.URL, url.PathEscape(key), params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL)
		if err != nil {
			return nil, fmt.Errorf("get comments %s: %w", key, err)
		}

		var page CommentPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse comments response: %w", err)
		}

		all = append(all, page.Comments...)
		if len(page.Comments) == 0 || len(all) >= page.Total {
			break
		}
	}

	if maxComments > 0 && len(all) > maxComments {
		all = all[:maxComments]
	}
	return all, nil
}

// doRequest performs an authenticated request, retrying transient failures
// with exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, apiURL string) ([]byte, error) {
	if c.URL == "" {
		return nil, errors.New("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, errors.New("jira API token not configured")
	}

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		var err error
		body, err = c.do(ctx, method, apiURL)
		if err == nil {
			return nil
		}
		if !isRetryable(ctx, err) {
			return backoff.Permanent(err)
		}
		log.Debug().Err(err).Int("attempt", attempt).Str("url", apiURL).Msg("Transient Jira failure, retrying")
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(c.newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, apiURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ticketsim/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// setAuth uses Basic auth when a username is configured (Jira Cloud API
// tokens), and Bearer auth for personal access tokens otherwise.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

func (c *Client) newBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = c.MaxElapsed
	return backoff.WithMaxRetries(bo, c.MaxRetries)
}

// isRetryable returns true for transport failures and transient HTTP statuses.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// ParseTimestamp parses the timestamp formats Jira returns.
func ParseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, nil
	}
	layouts := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05-0700",
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", ts)
}
