package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pedropauloai/claude-agent-monitor/internal/store"
)

const statusRankCase = `CASE %s
  WHEN 'backlog' THEN 0
  WHEN 'planned' THEN 1
  WHEN 'pending' THEN 2
  WHEN 'in_progress' THEN 3
  WHEN 'in_review' THEN 4
  WHEN 'completed' THEN 5
  ELSE %s END`

const taskColumns = `task_id, project_id, sprint_id, title, description, status, priority, complexity,
  tags, depends_on, blocked_by, assigned_agent, external_id, external_session_id, created_at, updated_at`

// --- Projects ---

func (s *Store) CreateProject(ctx context.Context, name string) (store.Project, error) {
	if name == "" {
		return store.Project{}, errors.New("project name required")
	}
	id := randomID()
	now := time.Now().UTC().Unix()
	_, err := s.Pool.Exec(ctx, `INSERT INTO projects(project_id, name, created_at) VALUES($1, $2, $3)`, id, name, now)
	if err != nil {
		return store.Project{}, err
	}
	return store.Project{ProjectID: id, Name: name, CreatedAt: time.Unix(now, 0).UTC()}, nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (*store.Project, error) {
	var p store.Project
	var createdAt int64
	err := s.Pool.QueryRow(ctx, `SELECT project_id, name, created_at FROM projects WHERE project_id = $1`, projectID).
		Scan(&p.ProjectID, &p.Name, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]store.Project, error) {
	rows, err := s.Pool.Query(ctx, `SELECT project_id, name, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Project
	for rows.Next() {
		var p store.Project
		var createdAt int64
		if err := rows.Scan(&p.ProjectID, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Tasks ---

func (s *Store) CreateTask(ctx context.Context, t store.Task) (store.Task, error) {
	if t.ProjectID == "" {
		return store.Task{}, errors.New("project id required")
	}
	if t.Title == "" {
		return store.Task{}, errors.New("task title required")
	}
	if t.TaskID == "" {
		t.TaskID = randomID()
	}
	if t.Status == "" {
		t.Status = "backlog"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.Pool.Exec(ctx, `INSERT INTO tasks(task_id, project_id, sprint_id, title, description, status, priority, complexity,
  tags, depends_on, blocked_by, assigned_agent, external_id, external_session_id, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.TaskID, t.ProjectID, t.SprintID, t.Title, t.Description, t.Status, t.Priority, t.Complexity,
		encodeList(t.Tags), encodeList(t.DependsOn), encodeList(t.BlockedBy),
		t.AssignedAgent, t.ExternalID, t.ExternalSessionID, now.Unix(), now.Unix())
	if err != nil {
		return store.Task{}, err
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*store.Task, error) {
	t, err := scanTask(s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = $1`, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, projectID string, limit int) ([]store.Task, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+`
FROM tasks WHERE project_id = $1 ORDER BY created_at ASC LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *Store) ListOpenTasks(ctx context.Context) ([]store.Task, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+`
FROM tasks WHERE status NOT IN ('completed', 'deferred') ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *Store) GetTaskByExternalID(ctx context.Context, externalID string) (*store.Task, error) {
	if externalID == "" {
		return nil, nil
	}
	t, err := scanTask(s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE external_id = $1`, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) UpdateTaskStatusIfAdvance(ctx context.Context, taskID, status string, assignee *string) (bool, error) {
	sql := `UPDATE tasks
SET status = $1, assigned_agent = COALESCE($2, assigned_agent), updated_at = $3
WHERE task_id = $4
  AND status NOT IN ('blocked', 'deferred')
  AND (` + fmt.Sprintf(statusRankCase, "status", "99") + `)
    < (` + fmt.Sprintf(statusRankCase, "$1", "-1") + `)`
	tag, err := s.Pool.Exec(ctx, sql, status, assignee, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, taskID, status string, assignee *string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET status = $1, assigned_agent = COALESCE($2, assigned_agent), updated_at = $3 WHERE task_id = $4`,
		status, assignee, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *Store) SetTaskExternalID(ctx context.Context, taskID, externalID, sessionID string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE tasks SET external_id = $1, external_session_id = $2, updated_at = $3 WHERE task_id = $4`,
		nullIfEmpty(externalID), nullIfEmpty(sessionID), time.Now().UTC().Unix(), taskID)
	return err
}

func (s *Store) SetTaskAssignee(ctx context.Context, taskID string, assignee *string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE tasks SET assigned_agent = $1, updated_at = $2 WHERE task_id = $3`,
		assignee, time.Now().UTC().Unix(), taskID)
	return err
}

// --- Events ---

func (s *Store) InsertEvent(ctx context.Context, e store.Event) error {
	if e.EventID == "" {
		return errors.New("event id required")
	}
	if e.SessionID == "" {
		return errors.New("event session id required")
	}
	meta := e.Metadata
	if len(meta) == 0 {
		meta = []byte("{}")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO events(event_id, session_id, agent_id, kind, tool_name, file_path, input, output, error, metadata, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.EventID, e.SessionID, e.AgentID, e.Kind, e.ToolName, e.FilePath, e.Input, e.Output, e.Error,
		string(meta), created.Unix())
	return err
}

func (s *Store) ListEvents(ctx context.Context, sessionID string, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.Pool.Query(ctx, `SELECT event_id, session_id, agent_id, kind, tool_name, file_path, input, output, error, metadata, created_at
FROM events WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Event
	for rows.Next() {
		var e store.Event
		var meta string
		var createdAt int64
		if err := rows.Scan(&e.EventID, &e.SessionID, &e.AgentID, &e.Kind, &e.ToolName, &e.FilePath,
			&e.Input, &e.Output, &e.Error, &meta, &createdAt); err != nil {
			return nil, err
		}
		e.Metadata = []byte(meta)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Directory registry ---

func (s *Store) UpsertRegistryEntry(ctx context.Context, directory, projectID string, planningPath *string) error {
	if directory == "" {
		return errors.New("directory required")
	}
	if projectID == "" {
		return errors.New("project id required")
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO registry(directory, project_id, planning_path, created_at) VALUES($1, $2, $3, $4)
ON CONFLICT (directory) DO UPDATE SET project_id = EXCLUDED.project_id, planning_path = EXCLUDED.planning_path`,
		directory, projectID, planningPath, time.Now().UTC().Unix())
	return err
}

func (s *Store) GetRegistryEntry(ctx context.Context, directory string) (*store.RegistryEntry, error) {
	var e store.RegistryEntry
	var createdAt int64
	err := s.Pool.QueryRow(ctx, `SELECT directory, project_id, planning_path, created_at FROM registry WHERE directory = $1`, directory).
		Scan(&e.Directory, &e.ProjectID, &e.PlanningPath, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, nil
}

func (s *Store) ListRegistryEntries(ctx context.Context) ([]store.RegistryEntry, error) {
	rows, err := s.Pool.Query(ctx, `SELECT directory, project_id, planning_path, created_at FROM registry ORDER BY directory ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RegistryEntry
	for rows.Next() {
		var e store.RegistryEntry
		var createdAt int64
		if err := rows.Scan(&e.Directory, &e.ProjectID, &e.PlanningPath, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRegistryEntry(ctx context.Context, directory string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM registry WHERE directory = $1`, directory)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registry entry not found: %s", directory)
	}
	return nil
}

// --- Session bindings ---

func (s *Store) GetSessionBinding(ctx context.Context, sessionID string) (*store.SessionBinding, error) {
	var b store.SessionBinding
	var createdAt int64
	err := s.Pool.QueryRow(ctx, `SELECT session_id, project_id, created_at FROM session_bindings WHERE session_id = $1`, sessionID).
		Scan(&b.SessionID, &b.ProjectID, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &b, nil
}

func (s *Store) CreateSessionBinding(ctx context.Context, sessionID, projectID string) error {
	if sessionID == "" || projectID == "" {
		return errors.New("session id and project id required")
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO session_bindings(session_id, project_id, created_at) VALUES($1, $2, $3)
ON CONFLICT (session_id) DO NOTHING`, sessionID, projectID, time.Now().UTC().Unix())
	return err
}

func (s *Store) ListProjectSessions(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT session_id FROM session_bindings WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Activity log ---

func (s *Store) InsertActivity(ctx context.Context, taskID, eventID, kind, detail string) error {
	if taskID == "" {
		return errors.New("task id required")
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO activity_log(task_id, event_id, kind, detail, created_at) VALUES($1, $2, $3, $4, $5)`,
		taskID, eventID, kind, detail, time.Now().UTC().Unix())
	return err
}

func (s *Store) ListActivity(ctx context.Context, taskID string) ([]store.Activity, error) {
	rows, err := s.Pool.Query(ctx, `SELECT activity_id, task_id, event_id, kind, detail, created_at
FROM activity_log WHERE task_id = $1 ORDER BY created_at ASC, activity_id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Activity
	for rows.Next() {
		var a store.Activity
		var createdAt int64
		if err := rows.Scan(&a.ActivityID, &a.TaskID, &a.EventID, &a.Kind, &a.Detail, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*store.Task, error) {
	var t store.Task
	var tags, dependsOn, blockedBy string
	var createdAt, updatedAt int64
	err := row.Scan(&t.TaskID, &t.ProjectID, &t.SprintID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Complexity,
		&tags, &dependsOn, &blockedBy, &t.AssignedAgent, &t.ExternalID, &t.ExternalSessionID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Tags = decodeList(tags)
	t.DependsOn = decodeList(dependsOn)
	t.BlockedBy = decodeList(blockedBy)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]store.Task, error) {
	defer rows.Close()
	var out []store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func randomID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format(time.RFC3339Nano)))[:16]
	}
	return hex.EncodeToString(b)
}
