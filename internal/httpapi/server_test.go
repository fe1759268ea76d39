package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestApp(t *testing.T, opts ServerOptions) (*App, *httptest.Server) {
	t.Helper()
	if opts.Home == "" {
		opts.Home = t.TempDir()
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	app, err := NewApp(opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(func() {
		ts.Close()
		app.Hub.Shutdown()
		_ = app.Store.Close()
	})
	return app, ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestServerSmoke(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t, ServerOptions{})

	r1, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if r1.StatusCode != 200 {
		t.Fatalf("/health status=%d", r1.StatusCode)
	}
	r1.Body.Close()

	// create project
	var project map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/projects", `{"name":"webapp"}`), &project)
	projectID, _ := project["project_id"].(string)
	if projectID == "" {
		t.Fatalf("project create: %+v", project)
	}

	// list projects
	r2, err := http.Get(ts.URL + "/projects")
	if err != nil {
		t.Fatalf("GET /projects: %v", err)
	}
	var projects []map[string]any
	decodeBody(t, r2, &projects)
	if len(projects) != 1 || projects[0]["name"] != "webapp" {
		t.Fatalf("GET /projects: %+v", projects)
	}

	// create task
	var task map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/tasks",
		fmt.Sprintf(`{"project_id":%q,"title":"Implement auth middleware","tags":["auth"],"status":"pending"}`, projectID)), &task)
	taskID, _ := task["task_id"].(string)
	if taskID == "" || task["status"] != "pending" {
		t.Fatalf("task create: %+v", task)
	}

	// fetch task
	r3, err := http.Get(ts.URL + "/tasks/" + taskID)
	if err != nil {
		t.Fatalf("GET /tasks/{id}: %v", err)
	}
	var fetched map[string]any
	decodeBody(t, r3, &fetched)
	if fetched["title"] != "Implement auth middleware" {
		t.Fatalf("GET task: %+v", fetched)
	}

	// project task listing
	r4, err := http.Get(ts.URL + "/projects/" + projectID + "/tasks")
	if err != nil {
		t.Fatalf("GET project tasks: %v", err)
	}
	var tasks []map[string]any
	decodeBody(t, r4, &tasks)
	if len(tasks) != 1 {
		t.Fatalf("project tasks: %+v", tasks)
	}

	// unknown task is a 404
	r5, _ := http.Get(ts.URL + "/tasks/nope")
	if r5.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown task status=%d", r5.StatusCode)
	}
	r5.Body.Close()
}

func TestManualStatusOverride(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t, ServerOptions{})

	var project map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/projects", `{"name":"p"}`), &project)
	projectID := project["project_id"].(string)

	var task map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/tasks",
		fmt.Sprintf(`{"project_id":%q,"title":"t","status":"completed"}`, projectID)), &task)
	taskID := task["task_id"].(string)

	// invalid status rejected
	resp := postJSON(t, ts.URL+"/tasks/"+taskID+"/status", `{"status":"half_done"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid status code=%d", resp.StatusCode)
	}
	resp.Body.Close()

	// manual override can move a completed task backwards
	var updated map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/tasks/"+taskID+"/status", `{"status":"in_review"}`), &updated)
	if updated["status"] != "in_review" {
		t.Fatalf("manual override: %+v", updated)
	}
}

func TestRegistryAndResolve(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t, ServerOptions{})

	var project map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/projects", `{"name":"webapp"}`), &project)
	projectID := project["project_id"].(string)

	// registering an unknown project fails
	resp := postJSON(t, ts.URL+"/registry", `{"directory":"/x","project_id":"missing"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown project register code=%d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/registry",
		fmt.Sprintf(`{"directory":"/home/dev/webapp","project_id":%q}`, projectID))
	if resp.StatusCode != 200 {
		t.Fatalf("register code=%d", resp.StatusCode)
	}
	resp.Body.Close()

	// subdirectory resolves by prefix
	r, err := http.Get(ts.URL + "/registry/resolve?dir=" + "%2Fhome%2Fdev%2Fwebapp%2Fsrc")
	if err != nil {
		t.Fatalf("GET resolve: %v", err)
	}
	var resolved map[string]any
	decodeBody(t, r, &resolved)
	if resolved["project_id"] != projectID {
		t.Fatalf("resolve: %+v", resolved)
	}

	// unrelated directory does not resolve
	r2, _ := http.Get(ts.URL + "/registry/resolve?dir=%2Ftmp%2Felsewhere")
	if r2.StatusCode != http.StatusNotFound {
		t.Fatalf("unrelated resolve code=%d", r2.StatusCode)
	}
	r2.Body.Close()

	// list then delete
	r3, _ := http.Get(ts.URL + "/registry")
	var entries []map[string]any
	decodeBody(t, r3, &entries)
	if len(entries) != 1 {
		t.Fatalf("registry list: %+v", entries)
	}
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/registry?directory=%2Fhome%2Fdev%2Fwebapp", nil)
	r4, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("registry delete: %v", err)
	}
	if r4.StatusCode != 200 {
		t.Fatalf("registry delete code=%d", r4.StatusCode)
	}
	r4.Body.Close()
}

func TestEventIngestBindsAndCorrelates(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t, ServerOptions{})

	var project map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/projects", `{"name":"webapp"}`), &project)
	projectID := project["project_id"].(string)

	var task map[string]any
	decodeBody(t, postJSON(t, ts.URL+"/tasks",
		fmt.Sprintf(`{"project_id":%q,"title":"Implement auth middleware","tags":["auth","backend"],"status":"pending"}`, projectID)), &task)
	taskID := task["task_id"].(string)

	resp := postJSON(t, ts.URL+"/registry",
		fmt.Sprintf(`{"directory":"/home/dev/webapp","project_id":%q}`, projectID))
	resp.Body.Close()

	// ingest a file edit from inside the registered directory
	ing := postJSON(t, ts.URL+"/events", `{
		"session_id": "sess-1",
		"agent_id": "agent-1",
		"kind": "file_edit",
		"tool_name": "Edit",
		"file_path": "/home/dev/webapp/backend/auth/middleware.go",
		"working_dir": "/home/dev/webapp/backend"
	}`)
	if ing.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest code=%d", ing.StatusCode)
	}
	var ack map[string]any
	decodeBody(t, ing, &ack)
	if ack["event_id"] == "" {
		t.Fatalf("ingest ack: %+v", ack)
	}

	// the session was bound during ingestion
	rb, err := http.Get(ts.URL + "/sessions/sess-1")
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	var binding map[string]any
	decodeBody(t, rb, &binding)
	if binding["project_id"] != projectID {
		t.Fatalf("binding: %+v", binding)
	}

	// correlation runs async; poll until the task moves
	deadline := time.Now().Add(3 * time.Second)
	for {
		r, err := http.Get(ts.URL + "/tasks/" + taskID)
		if err != nil {
			t.Fatalf("GET task: %v", err)
		}
		var got map[string]any
		decodeBody(t, r, &got)
		if got["status"] == "in_progress" {
			if got["assigned_agent"] != "agent-1" {
				t.Fatalf("assignee: %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never advanced: %+v", got)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// the event is listed for its session
	re, err := http.Get(ts.URL + "/events?session_id=sess-1")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	var events []map[string]any
	decodeBody(t, re, &events)
	if len(events) != 1 || events[0]["kind"] != "file_edit" {
		t.Fatalf("events: %+v", events)
	}

	// activity trail recorded the advance
	ra, err := http.Get(ts.URL + "/tasks/" + taskID + "/activity")
	if err != nil {
		t.Fatalf("GET activity: %v", err)
	}
	var acts []map[string]any
	decodeBody(t, ra, &acts)
	if len(acts) != 1 || acts[0]["kind"] != "task_started" {
		t.Fatalf("activity: %+v", acts)
	}
}

func TestIngestValidation(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t, ServerOptions{})

	resp := postJSON(t, ts.URL+"/events", `{"kind":"file_edit"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing session_id code=%d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/events", `{"session_id":"s"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing kind code=%d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t, ServerOptions{APIKey: "sekrit"})

	// health stays open
	r, _ := http.Get(ts.URL + "/health")
	if r.StatusCode != 200 {
		t.Fatalf("/health code=%d", r.StatusCode)
	}
	r.Body.Close()

	// everything else requires the key
	r2, _ := http.Get(ts.URL + "/projects")
	if r2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key code=%d", r2.StatusCode)
	}
	r2.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/projects", nil)
	req.Header.Set("X-API-Key", "sekrit")
	r3, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("with key: %v", err)
	}
	if r3.StatusCode != 200 {
		t.Fatalf("with key code=%d", r3.StatusCode)
	}
	r3.Body.Close()
}

func TestFallbackMetrics(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t, ServerOptions{})
	r, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer r.Body.Close()
	buf := make([]byte, 4096)
	n, _ := r.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "agentmon_tasks_total") {
		t.Fatalf("metrics body: %s", buf[:n])
	}
}
