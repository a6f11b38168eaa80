// ABOUTME: Jira REST client implementing the enrichment Resolver
// ABOUTME: Maps every transport, auth and decode failure to ErrUnavailable

package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single issue lookup when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Client resolves ticket keys against a Jira instance's REST API using
// email + API token basic auth. The zero-value base URL means "no tracker
// configured"; every Resolve then reports Unavailable.
type Client struct {
	baseURL string
	email   string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

var _ Resolver = (*Client)(nil)

// NewClient creates a client for the tracker at baseURL. A non-positive
// timeout falls back to DefaultTimeout.
func NewClient(baseURL, email, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		email:   email,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "jira"),
	}
}

// Configured reports whether the client has a tracker to talk to.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// issueResponse mirrors the slice of the Jira issue document we read.
// Status, priority and assignee may each be null for a real issue.
type issueResponse struct {
	Fields struct {
		Status *struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

// Resolve fetches status, priority, assignee and last-updated for one key.
func (c *Client) Resolve(ctx context.Context, key string) (*Fields, error) {
	if !c.Configured() {
		return nil, unavailable("no tracker configured")
	}

	u := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=status,priority,assignee,updated",
		c.baseURL, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, unavailable("building issue request for %s: %v", key, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.email != "" || c.token != "" {
		req.SetBasicAuth(c.email, c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("issue lookup failed", "key", key, "error", err)
		return nil, unavailable("fetching issue %s: %v", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("issue lookup rejected", "key", key, "status", resp.StatusCode)
		return nil, unavailable("issue %s returned status %d", key, resp.StatusCode)
	}

	var issue issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, unavailable("decoding issue %s: %v", key, err)
	}

	f := &Fields{LastUpdated: issue.Fields.Updated}
	if issue.Fields.Status != nil {
		f.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Priority != nil {
		f.Priority = issue.Fields.Priority.Name
	}
	if issue.Fields.Assignee != nil {
		f.Assignee = issue.Fields.Assignee.DisplayName
	}
	return f, nil
}
