package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// epicLinkSchema is the Agile custom field type that links a story to its
// epic on classic projects.
const epicLinkSchema = "com.pyxis.greenhopper.jira:gh-epic-link"

// Progress aggregates sub-task completion for an issue.
type Progress struct {
	Progress int `json:"progress"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// Issue is a simplified tracker issue.
type Issue struct {
	Key      string   `json:"key"`
	Summary  string   `json:"summary"`
	Type     string   `json:"type"`
	Status   string   `json:"status"`
	Progress Progress `json:"progress"`
	Subtasks []Issue  `json:"subtasks,omitempty"`
}

// FieldMeta describes one field from the create-meta response.
type FieldMeta struct {
	Name   string `json:"name"`
	Schema struct {
		Type   string `json:"type"`
		Custom string `json:"custom"`
	} `json:"schema"`
}

// Client is a minimal issue-tracker REST client (Jira-compatible API,
// basic auth).
type Client struct {
	BaseURL    string
	Email      string
	APIToken   string
	ProjectKey string
	HTTP       *http.Client
}

func NewClient(baseURL, email, apiToken, projectKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Email:      email,
		APIToken:   apiToken,
		ProjectKey: projectKey,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.Email, c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("tracker %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

// CreateEpic creates an epic and returns its key.
func (c *Client) CreateEpic(ctx context.Context, summary, description string) (string, error) {
	fields := map[string]any{
		"project":   map[string]any{"key": c.ProjectKey},
		"summary":   summary,
		"issuetype": map[string]any{"name": "Epic"},
	}
	if description != "" {
		fields["description"] = description
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", map[string]any{"fields": fields}, &created); err != nil {
		return "", fmt.Errorf("creating epic: %w", err)
	}
	return created.Key, nil
}

// CreateStory creates a story with the given custom fields and links it to
// the epic. A missing epic-link field is tolerated: the story is still
// created, just unlinked.
func (c *Client) CreateStory(ctx context.Context, epicKey, summary string, customFields map[string]any) (string, error) {
	fields := map[string]any{
		"project":   map[string]any{"key": c.ProjectKey},
		"summary":   summary,
		"issuetype": map[string]any{"name": "Story"},
	}
	for id, v := range customFields {
		fields[id] = v
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", map[string]any{"fields": fields}, &created); err != nil {
		return "", fmt.Errorf("creating story: %w", err)
	}

	if epicKey != "" {
		if meta, err := c.CreateMeta(ctx, "Story"); err == nil {
			if fieldID := EpicLinkFieldID(meta); fieldID != "" {
				_ = c.UpdateFields(ctx, created.Key, map[string]any{fieldID: epicKey})
			}
		}
	}
	return created.Key, nil
}

type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string `json:"summary"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		AggregateProgress *struct {
			Progress int `json:"progress"`
			Total    int `json:"total"`
		} `json:"aggregateprogress"`
		Progress *struct {
			Progress int `json:"progress"`
			Total    int `json:"total"`
		} `json:"progress"`
		Subtasks []rawIssue `json:"subtasks"`
	} `json:"fields"`
}

func (r rawIssue) simplify() Issue {
	issue := Issue{
		Key:     r.Key,
		Summary: r.Fields.Summary,
		Type:    r.Fields.IssueType.Name,
		Status:  r.Fields.Status.Name,
	}
	progress := r.Fields.AggregateProgress
	if progress == nil {
		progress = r.Fields.Progress
	}
	if progress != nil {
		issue.Progress.Progress = progress.Progress
		issue.Progress.Total = progress.Total
		if progress.Total > 0 {
			issue.Progress.Percent = int(float64(progress.Progress)*100.0/float64(progress.Total) + 0.5)
		}
	}
	for _, sub := range r.Fields.Subtasks {
		issue.Subtasks = append(issue.Subtasks, sub.simplify())
	}
	return issue
}

// GetIssue fetches an issue with its status, progress and sub-tasks.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var raw rawIssue
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key), nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching issue %s: %w", key, err)
	}

	issue := raw.simplify()
	return &issue, nil
}

// ListEpics returns the project's epics.
func (c *Client) ListEpics(ctx context.Context) ([]Issue, error) {
	jql := fmt.Sprintf(`project = %s AND issuetype = Epic`, c.ProjectKey)
	path := "/rest/api/2/search?maxResults=100&jql=" + url.QueryEscape(jql)

	var result struct {
		Issues []rawIssue `json:"issues"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("listing epics: %w", err)
	}

	epics := make([]Issue, 0, len(result.Issues))
	for _, raw := range result.Issues {
		epics = append(epics, raw.simplify())
	}
	return epics, nil
}

// UpdateFields sets fields on an existing issue.
func (c *Client) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	path := "/rest/api/2/issue/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodPut, path, map[string]any{"fields": fields}, nil); err != nil {
		return fmt.Errorf("updating issue %s: %w", key, err)
	}
	return nil
}

// CreateMeta returns the available fields for creating the given issue
// type in the configured project.
func (c *Client) CreateMeta(ctx context.Context, issueType string) (map[string]FieldMeta, error) {
	path := fmt.Sprintf(
		"/rest/api/2/issue/createmeta?projectKeys=%s&issuetypeNames=%s&expand=projects.issuetypes.fields",
		url.QueryEscape(c.ProjectKey), url.QueryEscape(issueType))

	var meta struct {
		Projects []struct {
			IssueTypes []struct {
				Fields map[string]FieldMeta `json:"fields"`
			} `json:"issuetypes"`
		} `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &meta); err != nil {
		return nil, fmt.Errorf("fetching create meta: %w", err)
	}
	if len(meta.Projects) == 0 || len(meta.Projects[0].IssueTypes) == 0 {
		return nil, fmt.Errorf("no create meta for project %s issue type %s", c.ProjectKey, issueType)
	}
	return meta.Projects[0].IssueTypes[0].Fields, nil
}

// EpicLinkFieldID finds the epic-link field in create meta, by schema
// custom type first, then by name.
func EpicLinkFieldID(meta map[string]FieldMeta) string {
	for id, f := range meta {
		if f.Schema.Custom == epicLinkSchema {
			return id
		}
	}
	for id, f := range meta {
		if strings.Contains(strings.ToLower(f.Name), "epic link") && strings.HasPrefix(f.Schema.Custom, "com.") {
			return id
		}
	}
	return ""
}

// RHSAFieldID finds a custom field whose name mentions RHSA.
func RHSAFieldID(meta map[string]FieldMeta) string {
	for id, f := range meta {
		if strings.Contains(strings.ToLower(f.Name), "rhsa") {
			return id
		}
	}
	return ""
}
