// Package client provides a Go SDK for the agent-monitor HTTP API.
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

	"github.com/pedropauloai/claude-agent-monitor/pkg/models"
)

// Client calls the agent-monitor HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:4483"
	APIKey     string       // optional; sent as X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL. APIKey is optional.
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

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// IngestEvent submits an event for recording and correlation. The daemon
// accepts before correlating; the returned id identifies the stored event.
func (c *Client) IngestEvent(ctx context.Context, ev models.Event) (eventID string, err error) {
	var out struct {
		EventID string `json:"event_id"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/events", ev, &out)
	return out.EventID, err
}

// ListEvents returns a session's events, newest first. limit <= 0 uses the
// server default.
func (c *Client) ListEvents(ctx context.Context, sessionID string, limit int) ([]models.Event, error) {
	path := "/events?session_id=" + url.QueryEscape(sessionID)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var out []models.Event
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := c.doJSON(ctx, http.MethodGet, "/projects", nil, &out)
	return out, err
}

// CreateProject creates a project and returns it.
func (c *Client) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	var out models.Project
	err := c.doJSON(ctx, http.MethodPost, "/projects", map[string]string{"name": name}, &out)
	return &out, err
}

// ListTasks returns a project's tasks. limit <= 0 uses the server default.
func (c *Client) ListTasks(ctx context.Context, projectID string, limit int) ([]models.Task, error) {
	path := "/projects/" + url.PathEscape(projectID) + "/tasks"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateTask creates a task and returns it.
func (c *Client) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks", t, &out)
	return &out, err
}

// GetTask returns one task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &out)
	return &out, err
}

// SetTaskStatus manually overrides a task's status and returns the updated task.
func (c *Client) SetTaskStatus(ctx context.Context, taskID, status string, assignee *string) (*models.Task, error) {
	body := map[string]any{"status": status}
	if assignee != nil {
		body["assignee"] = *assignee
	}
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/status", body, &out)
	return &out, err
}

// TaskActivity returns a task's audit trail, newest first.
func (c *Client) TaskActivity(ctx context.Context, taskID string) ([]models.Activity, error) {
	var out []models.Activity
	err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/activity", nil, &out)
	return out, err
}

// RegisterDirectory maps a working directory to a project.
func (c *Client) RegisterDirectory(ctx context.Context, directory, projectID string, planningPath *string) error {
	body := map[string]any{"directory": directory, "project_id": projectID}
	if planningPath != nil {
		body["planning_path"] = *planningPath
	}
	return c.doJSON(ctx, http.MethodPost, "/registry", body, nil)
}

// UnregisterDirectory removes a directory mapping.
func (c *Client) UnregisterDirectory(ctx context.Context, directory string) error {
	return c.doJSON(ctx, http.MethodDelete, "/registry?directory="+url.QueryEscape(directory), nil, nil)
}

// ListRegistry returns all directory mappings.
func (c *Client) ListRegistry(ctx context.Context) ([]models.RegistryEntry, error) {
	var out []models.RegistryEntry
	err := c.doJSON(ctx, http.MethodGet, "/registry", nil, &out)
	return out, err
}

// ResolveDirectory returns the project a directory belongs to. The call
// errors when no registration covers the directory.
func (c *Client) ResolveDirectory(ctx context.Context, dir string) (projectID string, err error) {
	var out struct {
		ProjectID string `json:"project_id"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/registry/resolve?dir="+url.QueryEscape(dir), nil, &out)
	return out.ProjectID, err
}

// SessionBinding returns a session's project binding.
func (c *Client) SessionBinding(ctx context.Context, sessionID string) (*models.SessionBinding, error) {
	var out models.SessionBinding
	err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, &out)
	return &out, err
}
