// Package models provides shared types for the agent-monitor HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Project is a monitored codebase that tasks and sessions attach to.
type Project struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Event is one recorded agent action: a tool call, file edit, command run,
// or lifecycle signal. Events are immutable once ingested.
type Event struct {
	EventID   string         `json:"event_id,omitempty"`
	SessionID string         `json:"session_id"`
	AgentID   string         `json:"agent_id,omitempty"`
	Kind      string         `json:"kind"`
	ToolName  *string        `json:"tool_name,omitempty"`
	FilePath  *string        `json:"file_path,omitempty"`
	Input     *string        `json:"input,omitempty"`
	Output    *string        `json:"output,omitempty"`
	Error     *string        `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	// WorkingDir is only meaningful at ingestion time: when set, the session
	// is bound to the project registered for that directory.
	WorkingDir string    `json:"working_dir,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Task is a unit of planned work with an ordered status.
type Task struct {
	TaskID        string    `json:"task_id"`
	ProjectID     string    `json:"project_id"`
	SprintID      *string   `json:"sprint_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority,omitempty"`
	Complexity    int       `json:"complexity,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	DependsOn     []string  `json:"depends_on,omitempty"`
	BlockedBy     []string  `json:"blocked_by,omitempty"`
	AssignedAgent *string   `json:"assigned_agent,omitempty"`
	ExternalID    *string   `json:"external_id,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// RegistryEntry maps a working directory to a project.
type RegistryEntry struct {
	Directory    string    `json:"directory"`
	ProjectID    string    `json:"project_id"`
	PlanningPath *string   `json:"planning_path,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// SessionBinding is the write-once link from an agent session to a project.
type SessionBinding struct {
	SessionID string    `json:"session_id"`
	ProjectID string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CorrelationMatch is broadcast when an event is matched to a task.
type CorrelationMatch struct {
	EventID    string  `json:"event_id"`
	TaskID     string  `json:"task_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Activity is one audit-trail entry record for a task.
type Activity struct {
	ActivityID int64     `json:"activity_id"`
	TaskID     string    `json:"task_id"`
	EventID    string    `json:"event_id,omitempty"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}
