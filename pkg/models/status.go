package models

// Task statuses. The first six form an ordered progression; automatic
// transitions only ever move forward along it. Blocked and deferred sit
// outside the progression and are never entered or left automatically.
const (
	StatusBacklog    = "backlog"
	StatusPlanned    = "planned"
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked"
	StatusDeferred   = "deferred"
)

// Event kinds.
const (
	KindToolCall   = "tool_call"
	KindToolResult = "tool_result"
	KindFileEdit   = "file_edit"
	KindCommandRun = "command_run"
	KindLifecycle  = "lifecycle"
	KindMessage    = "message"
)

// Broadcast event names.
const (
	BroadcastConnected        = "connected"
	BroadcastHeartbeat        = "heartbeat"
	BroadcastCorrelationMatch = "correlation_match"
	BroadcastTaskUpdate       = "task_update"
)

// Activity kinds written by the correlation engine.
const (
	ActivityTaskStarted   = "task_started"
	ActivityTaskCompleted = "task_completed"
	ActivityTaskLinked    = "task_linked"
)

// Default limits and tuning.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultEventListLimit      = 200
	DefaultTaskListLimit       = 1000
	DefaultStreamChannelBuffer = 256
	DefaultConfidenceThreshold = 0.6
)

var statusRank = map[string]int{
	StatusBacklog:    0,
	StatusPlanned:    1,
	StatusPending:    2,
	StatusInProgress: 3,
	StatusInReview:   4,
	StatusCompleted:  5,
}

// StatusRank returns the position of s in the ordered progression.
// ok is false for blocked, deferred, and unknown statuses.
func StatusRank(s string) (rank int, ok bool) {
	rank, ok = statusRank[s]
	return rank, ok
}

// ValidStatus reports whether s is any known status, ordered or side-state.
func ValidStatus(s string) bool {
	if _, ok := statusRank[s]; ok {
		return true
	}
	return s == StatusBlocked || s == StatusDeferred
}

// CanAdvance reports whether an automatic transition from one status to
// another is allowed: both must be on the ordered progression, the current
// status must not be blocked, and the new status must be strictly later.
func CanAdvance(from, to string) bool {
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}
