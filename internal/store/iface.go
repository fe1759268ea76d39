package store

import "context"

// Store is the persistence interface for projects, tasks, events, the
// directory registry, session bindings, and the activity log.
// Implementations: the SQLite store returned by Open and *postgres.Store.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, name string) (Project, error)
	GetProject(ctx context.Context, projectID string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	// Tasks
	CreateTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, taskID string) (*Task, error)
	ListTasks(ctx context.Context, projectID string, limit int) ([]Task, error)
	// ListOpenTasks returns tasks across all projects whose status is
	// neither completed nor deferred.
	ListOpenTasks(ctx context.Context) ([]Task, error)
	GetTaskByExternalID(ctx context.Context, externalID string) (*Task, error)
	// UpdateTaskStatusIfAdvance sets the task status only when the new
	// status is strictly later on the ordered progression and the task is
	// not blocked or deferred. Returns whether a row changed. The guard is
	// part of the UPDATE itself so concurrent correlations cannot regress
	// a task.
	UpdateTaskStatusIfAdvance(ctx context.Context, taskID, status string, assignee *string) (bool, error)
	// UpdateTaskStatus sets the status unconditionally (manual edits).
	UpdateTaskStatus(ctx context.Context, taskID, status string, assignee *string) error
	SetTaskExternalID(ctx context.Context, taskID, externalID, sessionID string) error
	SetTaskAssignee(ctx context.Context, taskID string, assignee *string) error

	// Events
	InsertEvent(ctx context.Context, e Event) error
	ListEvents(ctx context.Context, sessionID string, limit int) ([]Event, error)

	// Directory registry
	UpsertRegistryEntry(ctx context.Context, directory, projectID string, planningPath *string) error
	GetRegistryEntry(ctx context.Context, directory string) (*RegistryEntry, error)
	ListRegistryEntries(ctx context.Context) ([]RegistryEntry, error)
	DeleteRegistryEntry(ctx context.Context, directory string) error

	// Session bindings (write-once; first insert wins)
	GetSessionBinding(ctx context.Context, sessionID string) (*SessionBinding, error)
	CreateSessionBinding(ctx context.Context, sessionID, projectID string) error
	ListProjectSessions(ctx context.Context, projectID string) ([]string, error)

	// Activity log
	InsertActivity(ctx context.Context, taskID, eventID, kind, detail string) error
	ListActivity(ctx context.Context, taskID string) ([]Activity, error)

	// Lifecycle
	Close() error
}
