package correlation

import (
	"regexp"
	"strings"
)

// ToolCategory buckets agent tools by what they do to the codebase.
type ToolCategory string

const (
	CategoryImplementation ToolCategory = "implementation"
	CategoryResearch       ToolCategory = "research"
	CategoryCommand        ToolCategory = "command"
	CategoryTask           ToolCategory = "task"
	CategoryOther          ToolCategory = "other"
)

// Task-management tool names issued by agents, normalized to lowercase.
var taskToolNames = map[string]struct{}{
	"task":        {},
	"task_create": {},
	"task_update": {},
	"create_task": {},
	"update_task": {},
	"todowrite":   {},
}

// IsTaskTool reports whether name is one of the explicit task-management tools.
func IsTaskTool(name string) bool {
	_, ok := taskToolNames[strings.ToLower(name)]
	return ok
}

// Categorize classifies a tool by name.
func Categorize(name string) ToolCategory {
	n := strings.ToLower(name)
	if _, ok := taskToolNames[n]; ok {
		return CategoryTask
	}
	switch {
	case containsAny(n, "write", "edit", "create", "patch", "apply"):
		return CategoryImplementation
	case containsAny(n, "read", "grep", "glob", "search", "find", "fetch", "list", "ls"):
		return CategoryResearch
	case containsAny(n, "bash", "shell", "exec", "command", "terminal", "run"):
		return CategoryCommand
	default:
		return CategoryOther
	}
}

// Verbs that make a task title a plausible target for a tool category.
var categoryVerbs = map[ToolCategory][]string{
	CategoryImplementation: {"implement", "build", "add", "create", "write", "fix", "refactor"},
	CategoryResearch:       {"investigate", "research", "explore", "analyze", "review", "read", "audit"},
	CategoryCommand:        {"test", "deploy", "ci", "run", "benchmark", "release"},
}

// categoryBonus rewards category-appropriate task titles: +0.15 when the
// title carries a matching verb, else a small flat +0.05 for any
// implementation tool.
func categoryBonus(cat ToolCategory, title string) float64 {
	t := strings.ToLower(title)
	for _, verb := range categoryVerbs[cat] {
		if strings.Contains(t, verb) {
			return 0.15
		}
	}
	if cat == CategoryImplementation {
		return 0.05
	}
	return 0
}

var passingRe = regexp.MustCompile(`\b\d+\s+passing\b`)

var successMarkers = []string{
	"tests passed",
	"test passed",
	"all tests pass",
	"0 failed",
	"0 failures",
	"build succeeded",
	"build successful",
	"compiled successfully",
	"ok  ", // go test package summary line
}

// OutputLooksSuccessful reports whether command output reads like a passing
// test run or successful build. Only these markers let a command event
// propose completion; everything else proposes in_progress.
func OutputLooksSuccessful(output string) bool {
	if output == "" {
		return false
	}
	out := strings.ToLower(output)
	for _, marker := range successMarkers {
		if strings.Contains(out, marker) {
			return true
		}
	}
	return passingRe.MatchString(out)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
