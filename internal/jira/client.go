// Package jira is the backend collaborator: a thin Jira Cloud REST v3
// client exposing issue search and status transitions. Transient failures
// of a single call are retried here with capped backoff; the engine itself
// never retries.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mohamedzouaghi/jira-scripts/internal/domain"
)

// DefaultServer is the Jira instance used when none is configured.
const DefaultServer = "https://noor-it.atlassian.net"

// sprintScope restricts the search to currently-active work: issues in an
// open sprint and not in a future sprint.
const sprintScope = "sprint in openSprints() AND sprint not in futureSprints()"

const searchFields = "status,issuetype,subtasks"

const maxRetries = 3

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL        string
	Account    string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a client authenticating as the given robot account.
func NewClient(serverURL, account, apiToken string) *Client {
	return &Client{
		URL:      strings.TrimSuffix(serverURL, "/"),
		Account:  account,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type statusField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type issueTypeField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiIssue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Status    *statusField    `json:"status"`
	IssueType *issueTypeField `json:"issuetype"`
	Subtasks  []apiIssue      `json:"subtasks"`
}

type searchResult struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []apiIssue `json:"issues"`
}

// SearchIssues returns the project's issues in the active sprint scope,
// handling pagination. Status names are normalized to canonical form.
func (c *Client) SearchIssues(ctx context.Context, projectID string) ([]domain.Issue, error) {
	jql := fmt.Sprintf("project = %q AND %s", projectID, sprintScope)

	var all []domain.Issue
	startAt := 0
	maxResults := 100

	for {
		params := url.Values{
			"jql":        {jql},
			"fields":     {searchFields},
			"startAt":    {fmt.Sprintf("%d", startAt)},
			"maxResults": {fmt.Sprintf("%d", maxResults)},
		}

		apiURL := fmt.Sprintf("%s/rest/api/3/search?%s", c.URL, params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result searchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		for i := range result.Issues {
			all = append(all, toDomainIssue(&result.Issues[i]))
		}

		if startAt+len(result.Issues) >= result.Total || len(result.Issues) == 0 {
			break
		}
		startAt += len(result.Issues)
	}

	return all, nil
}

func toDomainIssue(in *apiIssue) domain.Issue {
	out := domain.Issue{Key: in.Key}
	if in.Fields.Status != nil {
		out.Status = domain.Normalize(in.Fields.Status.Name)
	}
	if in.Fields.IssueType != nil {
		out.Type = in.Fields.IssueType.Name
	}
	for _, sub := range in.Fields.Subtasks {
		st := domain.Subtask{Key: sub.Key}
		if sub.Fields.Status != nil {
			st.Status = domain.Normalize(sub.Fields.Status.Name)
		}
		out.Subtasks = append(out.Subtasks, st)
	}
	return out
}

type transition struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	To   *statusField `json:"to"`
}

type transitionsResult struct {
	Transitions []transition `json:"transitions"`
}

// TransitionIssue moves an issue to the target status. The REST API takes a
// transition ID, not a status name, so the available transitions are
// fetched first and matched case-insensitively against their destination
// status. No matching transition is a failure for that issue.
func (c *Client) TransitionIssue(ctx context.Context, key string, target domain.Status) error {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", c.URL, url.PathEscape(key))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("list transitions for %s: %w", key, err)
	}

	var result transitionsResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse transitions response: %w", err)
	}

	id := ""
	for _, tr := range result.Transitions {
		if tr.To != nil && domain.Normalize(tr.To.Name) == target {
			id = tr.ID
			break
		}
		if domain.Normalize(tr.Name) == target {
			id = tr.ID
			break
		}
	}
	if id == "" {
		return fmt.Errorf("issue %s has no transition to status %q", key, target)
	}

	payload, err := json.Marshal(map[string]any{
		"transition": map[string]string{"id": id},
	})
	if err != nil {
		return fmt.Errorf("marshal transition request: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, apiURL, payload); err != nil {
		return fmt.Errorf("transition issue %s: %w", key, err)
	}
	return nil
}

// doRequest executes an authenticated request, retrying transient failures
// (network errors, 429, 5xx) with exponential backoff. Other non-2xx
// responses fail immediately.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}

	var respBody []byte
	attempt := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		c.setAuth(req)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "jira-scripts-sync/1.0")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			respBody = nil
			return nil
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			respBody = data
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(data))
		default:
			return backoff.Permanent(fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(data)))
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		return nil, err
	}
	return respBody, nil
}

// setAuth picks basic auth for Jira Cloud (account + API token) and bearer
// auth otherwise.
func (c *Client) setAuth(req *http.Request) {
	isCloud := strings.Contains(c.URL, "atlassian.net")
	if (isCloud || c.Account != "") && c.Account != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Account + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}
