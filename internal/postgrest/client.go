// Package postgrest is a minimal read-only client for Supabase's PostgREST
// endpoint (/rest/v1). It covers what the importer needs: filtered,
// ordered selects and bare pings for connectivity checks.
package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// RestPath is the PostgREST mount point on a Supabase instance.
	RestPath = "/rest/v1/"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	maxResponseSize = 64 * 1024 * 1024
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Table      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: status %d: %s", e.Table, e.StatusCode, e.Body)
}

// Client talks to one PostgREST endpoint with a fixed API key.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a client for the Supabase instance at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithTimeout returns a copy of the client whose HTTP client uses timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	return &Client{
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: c.HTTPClient.Transport,
		},
	}
}

// Select reads rows of table matching q. Each row is returned undecoded.
func (c *Client) Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	u := c.BaseURL + RestPath + url.PathEscape(table)
	if params := q.Values().Encode(); params != "" {
		u += "?" + params
	}

	body, status, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}
	if status != http.StatusOK {
		return nil, &StatusError{Table: table, StatusCode: status, Body: truncate(string(body), 300)}
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", table, err)
	}
	return rows, nil
}

// Ping issues a GET for path (relative to the base URL) with limit=1 and
// returns the HTTP status. Transport failures are returned as errors.
func (c *Client) Ping(ctx context.Context, path string) (int, error) {
	u := c.BaseURL + path + "?" + url.Values{"limit": {"1"}}.Encode()
	_, status, err := c.get(ctx, u)
	return status, err
}

// CloseIdleConnections releases pooled connections held by the client.
func (c *Client) CloseIdleConnections() {
	c.HTTPClient.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, urlStr string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
