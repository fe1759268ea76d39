// Package httpapi exposes the monitor daemon's HTTP surface: event
// ingestion, project/task/registry management, and the live stream
// endpoints (SSE and WebSocket).
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pedropauloai/claude-agent-monitor/internal/broadcast"
	"github.com/pedropauloai/claude-agent-monitor/internal/correlation"
	"github.com/pedropauloai/claude-agent-monitor/internal/otel"
	"github.com/pedropauloai/claude-agent-monitor/internal/router"
	"github.com/pedropauloai/claude-agent-monitor/internal/store"
	"github.com/pedropauloai/claude-agent-monitor/internal/store/postgres"
	"github.com/pedropauloai/claude-agent-monitor/pkg/models"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read
// more than maxBytes. Call for requests that carry a body before decoding.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (viewer UI on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key, DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string        // if set, require X-API-Key header or query api_key
	DBDriver       string        // "sqlite" (default) or "postgres"
	DBURL          string        // for postgres: connection string (or set DATABASE_URL env)
	Heartbeat      time.Duration // stream heartbeat interval; zero for default
	MetricsHandler http.Handler  // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool          // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server and the subsystems behind it.
type App struct {
	Server *http.Server
	Hub    *broadcast.Hub
	Store  store.Store
	Router *router.Router
	Engine *correlation.Engine
	Home   string
}

// NewApp creates the HTTP app (server, hub, store, router, correlation
// engine) and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}

	rt := router.New(st)
	hub := broadcast.NewHub(rt, opts.Heartbeat)
	eng := correlation.New(st, hub)
	app := &App{Hub: hub, Store: st, Router: rt, Engine: eng, Home: opts.Home}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", app.handleFallbackMetrics)
	}

	mux.HandleFunc("/events", app.handleEvents)
	mux.HandleFunc("/projects", app.handleProjects)
	mux.HandleFunc("/projects/", app.handleProjectScoped)
	mux.HandleFunc("/tasks", app.handleCreateTask)
	mux.HandleFunc("/tasks/", app.handleTaskScoped)
	mux.HandleFunc("/registry", app.handleRegistry)
	mux.HandleFunc("/registry/resolve", app.handleResolve)
	mux.HandleFunc("/sessions/", app.handleSession)
	mux.HandleFunc("/stream", app.handleStream)
	mux.HandleFunc("/stream/ws", app.handleStreamWS)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "agent-monitor")
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		hub.Shutdown()
		_ = st.Close()
	})
	app.Server = srv
	return app, nil
}

// handleFallbackMetrics serves a minimal plain-text task gauge when no OTel
// metrics handler is configured.
func (a *App) handleFallbackMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	counts := map[string]int64{}
	projects, _ := a.Store.ListProjects(r.Context())
	for _, p := range projects {
		tasks, _ := a.Store.ListTasks(r.Context(), p.ProjectID, 0)
		for _, t := range tasks {
			counts[t.Status]++
		}
	}
	_, _ = fmt.Fprintf(w, "# TYPE agentmon_tasks_total gauge\n")
	for _, status := range []string{
		models.StatusBacklog, models.StatusPlanned, models.StatusPending,
		models.StatusInProgress, models.StatusInReview, models.StatusCompleted,
		models.StatusBlocked, models.StatusDeferred,
	} {
		_, _ = fmt.Fprintf(w, "agentmon_tasks_total{status=%q} %d\n", status, counts[status])
	}
}

// handleEvents ingests events (POST) and lists a session's events (GET).
// Ingestion is accept-then-correlate: the event row is durable before the
// 202 goes out, and correlation runs on its own goroutine so a slow or
// failing match never blocks the agent.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.ingestEvent(w, r)
	case http.MethodGet:
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			writeJSONError(w, http.StatusBadRequest, "session_id query required")
			return
		}
		limit := queryInt(r, "limit", models.DefaultEventListLimit)
		events, err := a.Store.ListEvents(r.Context(), sessionID, limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.Event, 0, len(events))
		for _, e := range events {
			out = append(out, apiEvent(e))
		}
		writeJSON(w, out)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var body models.Event
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session_id required")
		return
	}
	if body.Kind == "" {
		writeJSONError(w, http.StatusBadRequest, "kind required")
		return
	}

	metadata := []byte("{}")
	if len(body.Metadata) > 0 {
		b, err := json.Marshal(body.Metadata)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid metadata")
			return
		}
		metadata = b
	}

	ev := store.Event{
		EventID:   uuid.NewString(),
		SessionID: body.SessionID,
		AgentID:   body.AgentID,
		Kind:      body.Kind,
		ToolName:  body.ToolName,
		FilePath:  body.FilePath,
		Input:     body.Input,
		Output:    body.Output,
		Error:     body.Error,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Store.InsertEvent(r.Context(), ev); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	otel.RecordEventIngested(r.Context(), ev.Kind)

	if body.WorkingDir != "" {
		if _, ok, err := a.Router.BindSession(r.Context(), ev.SessionID, body.WorkingDir); err != nil {
			slog.Warn("session bind failed", "session_id", ev.SessionID, "err", err)
		} else if !ok {
			slog.Debug("working dir not registered", "dir", body.WorkingDir)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSONBody(w, map[string]any{"event_id": ev.EventID})

	go a.correlateAsync(ev)
}

// correlateAsync runs correlation detached from the request context.
func (a *App) correlateAsync(ev store.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := a.Engine.Correlate(ctx, ev)
	otel.RecordCorrelation(ctx, string(out.Result), confidenceOf(out))
	switch out.Result {
	case correlation.ResultMatched:
		slog.Info("event correlated",
			"event_id", ev.EventID,
			"task_id", out.Match.TaskID,
			"confidence", out.Match.Confidence,
			"reason", out.Match.Reason)
	case correlation.ResultFailed:
		slog.Error("correlation failed", "event_id", ev.EventID, "reason", out.Reason)
	default:
		slog.Debug("no correlation", "event_id", ev.EventID, "reason", out.Reason)
	}
}

func confidenceOf(out correlation.Outcome) float64 {
	if out.Match != nil {
		return out.Match.Confidence
	}
	return 0
}

func (a *App) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := a.Store.ListProjects(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.Project, 0, len(projects))
		for _, p := range projects {
			out = append(out, models.Project{ProjectID: p.ProjectID, Name: p.Name, CreatedAt: p.CreatedAt})
		}
		writeJSON(w, out)
	case http.MethodPost:
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Name == "" {
			writeJSONError(w, http.StatusBadRequest, "name required")
			return
		}
		p, err := a.Store.CreateProject(r.Context(), body.Name)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, models.Project{ProjectID: p.ProjectID, Name: p.Name, CreatedAt: p.CreatedAt})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProjectScoped routes /projects/{id}, /projects/{id}/tasks, and
// /projects/{id}/sessions.
func (a *App) handleProjectScoped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/projects/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	projectID := parts[0]

	if len(parts) == 1 {
		p, err := a.Store.GetProject(r.Context(), projectID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if p == nil {
			writeJSONError(w, http.StatusNotFound, "project not found")
			return
		}
		writeJSON(w, models.Project{ProjectID: p.ProjectID, Name: p.Name, CreatedAt: p.CreatedAt})
		return
	}

	switch parts[1] {
	case "tasks":
		limit := queryInt(r, "limit", models.DefaultTaskListLimit)
		tasks, err := a.Store.ListTasks(r.Context(), projectID, limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, apiTask(t))
		}
		writeJSON(w, out)
	case "sessions":
		sessions, err := a.Router.SessionsOfProject(r.Context(), projectID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]any{"project_id": projectID, "sessions": sessions})
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func (a *App) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body models.Task
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Status != "" && !models.ValidStatus(body.Status) {
		writeJSONError(w, http.StatusBadRequest, "invalid status: "+body.Status)
		return
	}
	t, err := a.Store.CreateTask(r.Context(), store.Task{
		ProjectID:     body.ProjectID,
		SprintID:      body.SprintID,
		Title:         body.Title,
		Description:   body.Description,
		Status:        body.Status,
		Priority:      body.Priority,
		Complexity:    body.Complexity,
		Tags:          body.Tags,
		DependsOn:     body.DependsOn,
		BlockedBy:     body.BlockedBy,
		AssignedAgent: body.AssignedAgent,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.Hub.Broadcast(r.Context(), models.BroadcastTaskUpdate, apiTask(t), "")
	writeJSON(w, apiTask(t))
}

// handleTaskScoped routes /tasks/{id}, /tasks/{id}/status, and
// /tasks/{id}/activity.
func (a *App) handleTaskScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/tasks/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	taskID := parts[0]

	task, err := a.Store.GetTask(r.Context(), taskID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		writeJSONError(w, http.StatusNotFound, "task not found")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, apiTask(*task))
		return
	}

	switch parts[1] {
	case "status":
		// Manual override: unconditional, unlike correlation-driven
		// advances. This is the only way out of blocked or deferred.
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			Status   string  `json:"status"`
			Assignee *string `json:"assignee"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if !models.ValidStatus(body.Status) {
			writeJSONError(w, http.StatusBadRequest, "invalid status: "+body.Status)
			return
		}
		if err := a.Store.UpdateTaskStatus(r.Context(), taskID, body.Status, body.Assignee); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		updated, err := a.Store.GetTask(r.Context(), taskID)
		if err != nil || updated == nil {
			writeJSONError(w, http.StatusInternalServerError, "task reload failed")
			return
		}
		a.Hub.Broadcast(r.Context(), models.BroadcastTaskUpdate, apiTask(*updated), "")
		writeJSON(w, apiTask(*updated))
	case "activity":
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		acts, err := a.Store.ListActivity(r.Context(), taskID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.Activity, 0, len(acts))
		for _, act := range acts {
			out = append(out, models.Activity{
				ActivityID: act.ActivityID,
				TaskID:     act.TaskID,
				EventID:    act.EventID,
				Kind:       act.Kind,
				Detail:     act.Detail,
				CreatedAt:  act.CreatedAt,
			})
		}
		writeJSON(w, out)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func (a *App) handleRegistry(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := a.Store.ListRegistryEntries(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.RegistryEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, models.RegistryEntry{
				Directory:    e.Directory,
				ProjectID:    e.ProjectID,
				PlanningPath: e.PlanningPath,
				CreatedAt:    e.CreatedAt,
			})
		}
		writeJSON(w, out)
	case http.MethodPost:
		var body struct {
			Directory    string  `json:"directory"`
			ProjectID    string  `json:"project_id"`
			PlanningPath *string `json:"planning_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Directory == "" || body.ProjectID == "" {
			writeJSONError(w, http.StatusBadRequest, "directory and project_id required")
			return
		}
		if p, err := a.Store.GetProject(r.Context(), body.ProjectID); err != nil || p == nil {
			writeJSONError(w, http.StatusBadRequest, "unknown project: "+body.ProjectID)
			return
		}
		if err := a.Router.RegisterDirectory(r.Context(), body.Directory, body.ProjectID, body.PlanningPath); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	case http.MethodDelete:
		dir := r.URL.Query().Get("directory")
		if dir == "" {
			writeJSONError(w, http.StatusBadRequest, "directory query required")
			return
		}
		if err := a.Router.UnregisterDirectory(r.Context(), dir); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleResolve answers which project a directory belongs to, using the
// same longest-prefix resolution that session binding uses.
func (a *App) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeJSONError(w, http.StatusBadRequest, "dir query required")
		return
	}
	projectID, ok, err := a.Router.ResolveProject(r.Context(), dir)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no project registered for "+dir)
		return
	}
	writeJSON(w, map[string]any{"project_id": projectID})
}

// handleSession returns a session's project binding.
func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	b, err := a.Store.GetSessionBinding(r.Context(), sessionID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if b == nil {
		writeJSONError(w, http.StatusNotFound, "session not bound")
		return
	}
	writeJSON(w, models.SessionBinding{SessionID: b.SessionID, ProjectID: b.ProjectID, CreatedAt: b.CreatedAt})
}

func apiTask(t store.Task) models.Task {
	return models.Task{
		TaskID:        t.TaskID,
		ProjectID:     t.ProjectID,
		SprintID:      t.SprintID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		Priority:      t.Priority,
		Complexity:    t.Complexity,
		Tags:          t.Tags,
		DependsOn:     t.DependsOn,
		BlockedBy:     t.BlockedBy,
		AssignedAgent: t.AssignedAgent,
		ExternalID:    t.ExternalID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func apiEvent(e store.Event) models.Event {
	var metadata map[string]any
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &metadata)
	}
	return models.Event{
		EventID:   e.EventID,
		SessionID: e.SessionID,
		AgentID:   e.AgentID,
		Kind:      e.Kind,
		ToolName:  e.ToolName,
		FilePath:  e.FilePath,
		Input:     e.Input,
		Output:    e.Output,
		Error:     e.Error,
		Metadata:  metadata,
		CreatedAt: e.CreatedAt,
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSONBody(w, v)
}

func writeJSONBody(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
