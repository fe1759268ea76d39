package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// statusRankCase maps a status column or parameter to its position on the
// ordered progression inside SQL, so the monotonic guard runs atomically
// with the UPDATE. Side-states and unknown values rank 99 (never advanced
// from here) or -1 (never advanced to).
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

var (
	sqlInsertEvent = `INSERT INTO events(event_id, session_id, agent_id, kind, tool_name, file_path, input, output, error, metadata, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlListOpenTasks = `SELECT ` + taskColumns + `
FROM tasks WHERE status NOT IN ('completed', 'deferred') ORDER BY created_at ASC`

	sqlGetTask = `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = ?`

	sqlAdvanceStatus = `UPDATE tasks
SET status = ?, assigned_agent = COALESCE(?, assigned_agent), updated_at = ?
WHERE task_id = ?
  AND status NOT IN ('blocked', 'deferred')
  AND (` + fmt.Sprintf(statusRankCase, "status", "99") + `)
    < (` + fmt.Sprintf(statusRankCase, "?", "-1") + `)`
)

// --- Projects ---

func (s *sqliteStore) CreateProject(ctx context.Context, name string) (Project, error) {
	if name == "" {
		return Project{}, errors.New("project name required")
	}
	id := randomID()
	now := time.Now().UTC().Unix()
	_, err := s.DB.ExecContext(ctx, `INSERT INTO projects(project_id, name, created_at) VALUES(?, ?, ?)`, id, name, now)
	if err != nil {
		return Project{}, err
	}
	return Project{ProjectID: id, Name: name, CreatedAt: time.Unix(now, 0).UTC()}, nil
}

func (s *sqliteStore) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var p Project
	var createdAt int64
	err := s.DB.QueryRowContext(ctx, `SELECT project_id, name, created_at FROM projects WHERE project_id = ?`, projectID).
		Scan(&p.ProjectID, &p.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

func (s *sqliteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT project_id, name, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Project
	for rows.Next() {
		var p Project
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

func (s *sqliteStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	if t.ProjectID == "" {
		return Task{}, errors.New("project id required")
	}
	if t.Title == "" {
		return Task{}, errors.New("task title required")
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
	_, err := s.DB.ExecContext(ctx, `INSERT INTO tasks(task_id, project_id, sprint_id, title, description, status, priority, complexity,
  tags, depends_on, blocked_by, assigned_agent, external_id, external_session_id, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.ProjectID, t.SprintID, t.Title, t.Description, t.Status, t.Priority, t.Complexity,
		encodeList(t.Tags), encodeList(t.DependsOn), encodeList(t.BlockedBy),
		t.AssignedAgent, t.ExternalID, t.ExternalSessionID, now.Unix(), now.Unix())
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *sqliteStore) GetTask(ctx context.Context, taskID string) (*Task, error) {
	t, err := scanTask(s.stmtGetTask.QueryRowContext(ctx, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) ListTasks(ctx context.Context, projectID string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+taskColumns+`
FROM tasks WHERE project_id = ? ORDER BY created_at ASC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *sqliteStore) ListOpenTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.stmtListOpenTasks.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *sqliteStore) GetTaskByExternalID(ctx context.Context, externalID string) (*Task, error) {
	if externalID == "" {
		return nil, nil
	}
	t, err := scanTask(s.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE external_id = ?`, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) UpdateTaskStatusIfAdvance(ctx context.Context, taskID, status string, assignee *string) (bool, error) {
	res, err := s.stmtAdvanceStatus.ExecContext(ctx, status, assignee, time.Now().UTC().Unix(), taskID, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) UpdateTaskStatus(ctx context.Context, taskID, status string, assignee *string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET status = ?, assigned_agent = COALESCE(?, assigned_agent), updated_at = ? WHERE task_id = ?`,
		status, assignee, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *sqliteStore) SetTaskExternalID(ctx context.Context, taskID, externalID, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE tasks SET external_id = ?, external_session_id = ?, updated_at = ? WHERE task_id = ?`,
		nullIfEmpty(externalID), nullIfEmpty(sessionID), time.Now().UTC().Unix(), taskID)
	return err
}

func (s *sqliteStore) SetTaskAssignee(ctx context.Context, taskID string, assignee *string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE tasks SET assigned_agent = ?, updated_at = ? WHERE task_id = ?`,
		assignee, time.Now().UTC().Unix(), taskID)
	return err
}

// --- Events ---

func (s *sqliteStore) InsertEvent(ctx context.Context, e Event) error {
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
	_, err := s.stmtInsertEvent.ExecContext(ctx,
		e.EventID, e.SessionID, e.AgentID, e.Kind, e.ToolName, e.FilePath, e.Input, e.Output, e.Error,
		string(meta), created.Unix())
	return err
}

func (s *sqliteStore) ListEvents(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT event_id, session_id, agent_id, kind, tool_name, file_path, input, output, error, metadata, created_at
FROM events WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
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

func (s *sqliteStore) UpsertRegistryEntry(ctx context.Context, directory, projectID string, planningPath *string) error {
	if directory == "" {
		return errors.New("directory required")
	}
	if projectID == "" {
		return errors.New("project id required")
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO registry(directory, project_id, planning_path, created_at) VALUES(?, ?, ?, ?)
ON CONFLICT(directory) DO UPDATE SET project_id = excluded.project_id, planning_path = excluded.planning_path`,
		directory, projectID, planningPath, time.Now().UTC().Unix())
	return err
}

func (s *sqliteStore) GetRegistryEntry(ctx context.Context, directory string) (*RegistryEntry, error) {
	var e RegistryEntry
	var createdAt int64
	err := s.DB.QueryRowContext(ctx, `SELECT directory, project_id, planning_path, created_at FROM registry WHERE directory = ?`, directory).
		Scan(&e.Directory, &e.ProjectID, &e.PlanningPath, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, nil
}

func (s *sqliteStore) ListRegistryEntries(ctx context.Context) ([]RegistryEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT directory, project_id, planning_path, created_at FROM registry ORDER BY directory ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RegistryEntry
	for rows.Next() {
		var e RegistryEntry
		var createdAt int64
		if err := rows.Scan(&e.Directory, &e.ProjectID, &e.PlanningPath, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteRegistryEntry(ctx context.Context, directory string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM registry WHERE directory = ?`, directory)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("registry entry not found: %s", directory)
	}
	return nil
}

// --- Session bindings ---

func (s *sqliteStore) GetSessionBinding(ctx context.Context, sessionID string) (*SessionBinding, error) {
	var b SessionBinding
	var createdAt int64
	err := s.DB.QueryRowContext(ctx, `SELECT session_id, project_id, created_at FROM session_bindings WHERE session_id = ?`, sessionID).
		Scan(&b.SessionID, &b.ProjectID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &b, nil
}

// CreateSessionBinding inserts a binding; an existing binding for the
// session is left untouched (first registration wins).
func (s *sqliteStore) CreateSessionBinding(ctx context.Context, sessionID, projectID string) error {
	if sessionID == "" || projectID == "" {
		return errors.New("session id and project id required")
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO session_bindings(session_id, project_id, created_at) VALUES(?, ?, ?)
ON CONFLICT(session_id) DO NOTHING`, sessionID, projectID, time.Now().UTC().Unix())
	return err
}

func (s *sqliteStore) ListProjectSessions(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT session_id FROM session_bindings WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

func (s *sqliteStore) InsertActivity(ctx context.Context, taskID, eventID, kind, detail string) error {
	if taskID == "" {
		return errors.New("task id required")
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO activity_log(task_id, event_id, kind, detail, created_at) VALUES(?, ?, ?, ?, ?)`,
		taskID, eventID, kind, detail, time.Now().UTC().Unix())
	return err
}

func (s *sqliteStore) ListActivity(ctx context.Context, taskID string) ([]Activity, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT activity_id, task_id, event_id, kind, detail, created_at
FROM activity_log WHERE task_id = ? ORDER BY created_at ASC, activity_id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Activity
	for rows.Next() {
		var a Activity
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

func scanTask(row rowScanner) (*Task, error) {
	var t Task
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

func collectTasks(rows *sql.Rows) ([]Task, error) {
	defer func() { _ = rows.Close() }()
	var out []Task
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
