// Package correlation infers which planned task each agent activity event
// advances. Correlation is advisory and best-effort: it combines weak
// lexical and structural signals into a confidence score, drives a
// forward-only task status machine, and never propagates errors back to
// the ingestion path that invoked it.
package correlation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pedropauloai/claude-agent-monitor/internal/broadcast"
	"github.com/pedropauloai/claude-agent-monitor/internal/similarity"
	"github.com/pedropauloai/claude-agent-monitor/internal/store"
	"github.com/pedropauloai/claude-agent-monitor/pkg/models"
)

// Result tags a correlation outcome.
type Result string

const (
	ResultMatched Result = "matched"
	ResultNoMatch Result = "no_match"
	ResultFailed  Result = "failed"
)

// Match is the ephemeral result of one successful correlation attempt.
type Match struct {
	EventID    string
	TaskID     string
	Confidence float64
	Reason     string
}

// Outcome is what Correlate returns for the caller to log. A Failed outcome
// carries the reason; it never surfaces as an error.
type Outcome struct {
	Result Result
	Match  *Match
	Reason string
}

// Engine matches events to tasks and advances task status. Safe for
// concurrent use; no cross-event locking is performed, so two concurrent
// forward advances on one task may both apply (the SQL guard prevents any
// regression).
type Engine struct {
	Store     store.Store
	Hub       *broadcast.Hub
	Threshold float64
}

// New returns an Engine with the default confidence threshold.
func New(st store.Store, hub *broadcast.Hub) *Engine {
	return &Engine{Store: st, Hub: hub, Threshold: models.DefaultConfidenceThreshold}
}

// Correlate attempts to match one event to a task. All internal errors and
// panics are contained here: the worst possible outcome is ResultFailed.
func (e *Engine) Correlate(ctx context.Context, ev store.Event) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Result: ResultFailed, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	switch {
	case ev.ToolName != nil && IsTaskTool(*ev.ToolName):
		return e.correlateTaskAction(ctx, ev)
	case correlatable(ev):
		return e.correlateGeneral(ctx, ev)
	default:
		return Outcome{Result: ResultNoMatch, Reason: "event not correlatable"}
	}
}

// correlatable reports whether a general event represents a tool that ran
// to completion.
func correlatable(ev store.Event) bool {
	if ev.ToolName == nil || ev.Error != nil {
		return false
	}
	switch ev.Kind {
	case models.KindToolResult, models.KindFileEdit, models.KindCommandRun:
		return true
	default:
		return false
	}
}

// taskAction is the decoded payload of an explicit task-management tool
// event. Unknown actions fall through to "no match".
type taskAction struct {
	Action  string `json:"action"`
	Subject string `json:"subject"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Owner   string `json:"owner"`
}

func decodeTaskAction(metadata []byte) (taskAction, bool) {
	var a taskAction
	if len(metadata) == 0 {
		return a, false
	}
	if err := json.Unmarshal(metadata, &a); err != nil {
		return a, false
	}
	return a, a.Action != ""
}

// correlateTaskAction handles the two explicit task-management actions:
// "create" matches by title similarity and links the agent's own task id,
// "update" matches by exact external id and applies the carried fields.
func (e *Engine) correlateTaskAction(ctx context.Context, ev store.Event) Outcome {
	act, ok := decodeTaskAction(ev.Metadata)
	if !ok {
		return Outcome{Result: ResultNoMatch, Reason: "malformed task action metadata"}
	}

	switch act.Action {
	case "create":
		return e.linkCreatedTask(ctx, ev, act)
	case "update":
		return e.applyTaskUpdate(ctx, ev, act)
	default:
		return Outcome{Result: ResultNoMatch, Reason: "unrecognized task action: " + act.Action}
	}
}

// linkCreatedTask matches a create action's free-text subject against open
// task titles across all projects and links the agent-issued id to the
// best match above the threshold.
func (e *Engine) linkCreatedTask(ctx context.Context, ev store.Event, act taskAction) Outcome {
	if act.Subject == "" {
		return Outcome{Result: ResultNoMatch, Reason: "task create action without subject"}
	}
	tasks, err := e.Store.ListOpenTasks(ctx)
	if err != nil {
		return Outcome{Result: ResultFailed, Reason: err.Error()}
	}

	var best *store.Task
	bestScore := 0.0
	for i := range tasks {
		if s := similarity.CombinedSimilarity(act.Subject, tasks[i].Title); s > bestScore {
			best = &tasks[i]
			bestScore = s
		}
	}
	if best == nil || bestScore < e.Threshold {
		return Outcome{Result: ResultNoMatch, Reason: fmt.Sprintf("no title within threshold for subject %q", act.Subject)}
	}

	if act.TaskID != "" {
		if err := e.Store.SetTaskExternalID(ctx, best.TaskID, act.TaskID, ev.SessionID); err != nil {
			return Outcome{Result: ResultFailed, Reason: err.Error()}
		}
	}
	reason := fmt.Sprintf("task create subject matched title at %.0f%%", bestScore*100)
	if err := e.Store.InsertActivity(ctx, best.TaskID, ev.EventID, models.ActivityTaskLinked, reason); err != nil {
		return Outcome{Result: ResultFailed, Reason: err.Error()}
	}
	return e.matched(ctx, ev, best.TaskID, bestScore, reason)
}

// applyTaskUpdate matches an update action by exact external id. Exact
// matches bypass the confidence threshold; the monotonic guard still
// applies through the status update itself.
func (e *Engine) applyTaskUpdate(ctx context.Context, ev store.Event, act taskAction) Outcome {
	if act.TaskID == "" {
		return Outcome{Result: ResultNoMatch, Reason: "task update action without task id"}
	}
	task, err := e.Store.GetTaskByExternalID(ctx, act.TaskID)
	if err != nil {
		return Outcome{Result: ResultFailed, Reason: err.Error()}
	}
	if task == nil {
		return Outcome{Result: ResultNoMatch, Reason: "no task with external id " + act.TaskID}
	}

	var owner *string
	if act.Owner != "" {
		owner = &act.Owner
	}
	if act.Status != "" {
		applied, err := e.Store.UpdateTaskStatusIfAdvance(ctx, task.TaskID, act.Status, owner)
		if err != nil {
			return Outcome{Result: ResultFailed, Reason: err.Error()}
		}
		if applied {
			if err := e.Store.InsertActivity(ctx, task.TaskID, ev.EventID, activityKind(act.Status), "status set by task update action"); err != nil {
				return Outcome{Result: ResultFailed, Reason: err.Error()}
			}
		}
	} else if owner != nil {
		if err := e.Store.SetTaskAssignee(ctx, task.TaskID, owner); err != nil {
			return Outcome{Result: ResultFailed, Reason: err.Error()}
		}
	}
	return e.matched(ctx, ev, task.TaskID, 1.0, "external id exact match")
}

// correlateGeneral handles any completed tool event: scan every open task,
// score, and advance the winner's status when the proposal moves forward.
func (e *Engine) correlateGeneral(ctx context.Context, ev store.Event) Outcome {
	task, confidence, reason, err := e.findBestMatch(ctx, ev)
	if err != nil {
		return Outcome{Result: ResultFailed, Reason: err.Error()}
	}
	if task == nil {
		return Outcome{Result: ResultNoMatch, Reason: "no task above confidence threshold"}
	}

	proposed := e.inferStatus(ev)
	var assignee *string
	if ev.AgentID != "" {
		assignee = &ev.AgentID
	}
	applied, err := e.Store.UpdateTaskStatusIfAdvance(ctx, task.TaskID, proposed, assignee)
	if err != nil {
		return Outcome{Result: ResultFailed, Reason: err.Error()}
	}
	if !applied {
		// No regression, no resurrecting blocked tasks: the match is
		// discarded without touching the task.
		return Outcome{Result: ResultNoMatch, Reason: fmt.Sprintf("match on task %s discarded: %s would not advance %s", task.TaskID, proposed, task.Status)}
	}

	if err := e.Store.InsertActivity(ctx, task.TaskID, ev.EventID, activityKind(proposed), reason); err != nil {
		return Outcome{Result: ResultFailed, Reason: err.Error()}
	}
	return e.matched(ctx, ev, task.TaskID, confidence, reason)
}

// inferStatus proposes the status a matched event implies. Implementation
// and research activity means the task is being worked; command output is
// promoted to completed only when it reads like a passing run.
func (e *Engine) inferStatus(ev store.Event) string {
	if ev.ToolName != nil && Categorize(*ev.ToolName) == CategoryCommand {
		output := ""
		if ev.Output != nil {
			output = *ev.Output
		}
		if OutputLooksSuccessful(output) {
			return models.StatusCompleted
		}
	}
	return models.StatusInProgress
}

func activityKind(status string) string {
	if status == models.StatusCompleted {
		return models.ActivityTaskCompleted
	}
	return models.ActivityTaskStarted
}

// matched broadcasts the correlation_match notification and builds the
// Matched outcome.
func (e *Engine) matched(ctx context.Context, ev store.Event, taskID string, confidence float64, reason string) Outcome {
	m := &Match{EventID: ev.EventID, TaskID: taskID, Confidence: confidence, Reason: reason}
	if e.Hub != nil {
		e.Hub.Broadcast(ctx, models.BroadcastCorrelationMatch, models.CorrelationMatch{
			EventID:    m.EventID,
			TaskID:     m.TaskID,
			Confidence: m.Confidence,
			Reason:     m.Reason,
		}, ev.SessionID)
	}
	return Outcome{Result: ResultMatched, Match: m, Reason: reason}
}
