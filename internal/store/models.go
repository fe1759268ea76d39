// Package store defines the persistence interface and shared models for
// projects, tasks, events, the directory registry, session bindings, and the
// activity log.
package store

import "time"

// Project is a monitored codebase.
type Project struct {
	ProjectID string
	Name      string
	CreatedAt time.Time
}

// Event is one immutable record of an agent action.
type Event struct {
	EventID   string
	SessionID string
	AgentID   string
	Kind      string
	ToolName  *string
	FilePath  *string
	Input     *string
	Output    *string
	Error     *string
	Metadata  []byte // raw JSON object; "{}" when absent
	CreatedAt time.Time
}

// Task is a unit of planned work belonging to a project.
type Task struct {
	TaskID            string
	ProjectID         string
	SprintID          *string
	Title             string
	Description       string
	Status            string
	Priority          string
	Complexity        int
	Tags              []string
	DependsOn         []string
	BlockedBy         []string
	AssignedAgent     *string
	ExternalID        *string // agent-issued id, for exact matching
	ExternalSessionID *string // session that issued ExternalID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RegistryEntry maps a working directory to a project.
type RegistryEntry struct {
	Directory    string
	ProjectID    string
	PlanningPath *string
	CreatedAt    time.Time
}

// SessionBinding links a session to a project. Created once, never updated.
type SessionBinding struct {
	SessionID string
	ProjectID string
	CreatedAt time.Time
}

// Activity is one audit-trail entry for a task.
type Activity struct {
	ActivityID int64
	TaskID     string
	EventID    string
	Kind       string
	Detail     string
	CreatedAt  time.Time
}
