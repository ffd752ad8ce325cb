// Package client provides a Go SDK for the coord HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Client calls the coord HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3549"
	APIKey     string       // optional; set for X-API-Key / api_key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:3549").
// APIKey is optional; when set, requests use the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Task is one task record as returned by the API.
type Task struct {
	Key       string  `json:"key"`
	Status    string  `json:"status"`
	Agent     *string `json:"agent,omitempty"`
	SessionID *string `json:"session_id,omitempty"`
	Member    *string `json:"member,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

// Session is one session record as returned by the API.
type Session struct {
	SessionID   string  `json:"session_id"`
	Member      string  `json:"member"`
	TaskKey     string  `json:"task_key"`
	Tool        *string `json:"tool,omitempty"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// TaskDetail is the per-task view: status plus the dependency list.
type TaskDetail struct {
	Task      string   `json:"task"`
	Status    string   `json:"status"`
	Record    *Task    `json:"record,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// MemberLoad is one member's assignment count in a workload report.
type MemberLoad struct {
	Member   string `json:"member"`
	Assigned int    `json:"assigned"`
}

// WorkloadReport is the balance view across members.
type WorkloadReport struct {
	Members    []MemberLoad `json:"members"`
	Imbalance  int          `json:"imbalance"`
	Idle       []string     `json:"idle,omitempty"`
	Overloaded []string     `json:"overloaded,omitempty"`
}

// ConflictReport is the per-task conflict check result.
type ConflictReport struct {
	Task     string   `json:"task"`
	Conflict bool     `json:"conflict"`
	Members  []string `json:"members,omitempty"`
	Window   string   `json:"window,omitempty"`
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// ListTasks returns all tasks, optionally filtered by status or member
// (pass "" for no filter; status wins when both are set).
func (c *Client) ListTasks(ctx context.Context, status, member string) ([]Task, error) {
	path := "/api/tasks"
	switch {
	case status != "":
		path += "?status=" + url.QueryEscape(status)
	case member != "":
		path += "?member=" + url.QueryEscape(member)
	}
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out.Tasks, err
}

// GetTask returns one task's status and dependencies. An unrecorded task
// comes back with status "unknown" and a nil record.
func (c *Client) GetTask(ctx context.Context, key string) (*TaskDetail, error) {
	var out TaskDetail
	err := c.doJSON(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(key), nil, &out)
	return &out, err
}

// Dependencies returns the full dependency adjacency map.
func (c *Client) Dependencies(ctx context.Context) (map[string][]string, error) {
	var out struct {
		Dependencies map[string][]string `json:"dependencies"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/dependencies", nil, &out)
	return out.Dependencies, err
}

// Cycles returns the current dependency cycles as formatted chains
// (e.g. "x -> y -> x").
func (c *Client) Cycles(ctx context.Context) ([]string, error) {
	var out struct {
		Cycles []string `json:"cycles"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/cycles", nil, &out)
	return out.Cycles, err
}

// ListSessions returns recent sessions, optionally filtered by member or
// status (pass "" for no filter; member wins when both are set; limit 0 =
// server default).
func (c *Client) ListSessions(ctx context.Context, member, status string, limit int) ([]Session, error) {
	q := url.Values{}
	if member != "" {
		q.Set("member", member)
	} else if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Sessions []Session `json:"sessions"`
	}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out.Sessions, err
}

// CheckConflict reports whether multiple members were recently active on the task.
func (c *Client) CheckConflict(ctx context.Context, task string) (*ConflictReport, error) {
	var out ConflictReport
	err := c.doJSON(ctx, http.MethodGet, "/api/conflicts?task="+url.QueryEscape(task), nil, &out)
	return &out, err
}

// Workload returns the member workload balance report.
func (c *Client) Workload(ctx context.Context) (*WorkloadReport, error) {
	var out WorkloadReport
	err := c.doJSON(ctx, http.MethodGet, "/api/workload", nil, &out)
	return &out, err
}

// State returns the exported coordination state document as raw JSON.
func (c *Client) State(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.doJSON(ctx, http.MethodGet, "/api/state", nil, &out)
	return out, err
}
