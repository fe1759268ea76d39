package cli

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "doctor", "project", "task", "events", "apikey"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	if root.PersistentFlags().Lookup("home") == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func TestApikeyGenerate(t *testing.T) {
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"apikey", "generate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("apikey generate: %v", err)
	}
	out := buf.String()
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "AGENT_MONITOR_API_KEY") {
		t.Errorf("output should mention AGENT_MONITOR_API_KEY")
	}
	if !strings.Contains(out, "X-API-Key") {
		t.Errorf("output should mention X-API-Key")
	}
}

func TestProjectAndTaskCommands(t *testing.T) {
	home := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		root := NewRootCmd("")
		var buf bytes.Buffer
		root.SetOut(&buf)
		root.SetErr(&buf)
		root.SetArgs(append([]string{"--home", home}, args...))
		if err := root.Execute(); err != nil {
			t.Fatalf("%v: %v\n%s", args, err, buf.String())
		}
		return buf.String()
	}

	out := run("project", "create", "--name", "webapp")
	if !strings.Contains(out, "Created project") {
		t.Fatalf("project create: %s", out)
	}

	listing := run("project", "list")
	fields := strings.Fields(listing)
	if len(fields) < 2 || fields[1] != "webapp" {
		t.Fatalf("project list: %s", listing)
	}
	projectID := fields[0]

	run("project", "register", "--project", projectID, "--dir", "/home/dev/webapp")
	resolved := run("project", "resolve", "--dir", "/home/dev/webapp/src")
	if strings.TrimSpace(resolved) != projectID {
		t.Fatalf("project resolve: %q want %q", resolved, projectID)
	}

	out = run("task", "create", "--project", projectID, "--title", "Implement auth", "--tags", "auth,backend")
	if !strings.Contains(out, "Created task") {
		t.Fatalf("task create: %s", out)
	}
	taskListing := run("task", "list", "--project", projectID)
	if !strings.Contains(taskListing, "backlog") || !strings.Contains(taskListing, "Implement auth") {
		t.Fatalf("task list: %s", taskListing)
	}
	taskID := strings.Fields(taskListing)[0]

	run("task", "status", "--id", taskID, "--status", "in_progress", "--assignee", "agent-1")
	show := run("task", "show", "--id", taskID)
	if !strings.Contains(show, "in_progress") || !strings.Contains(show, "agent-1") {
		t.Fatalf("task show: %s", show)
	}
}

func TestDoctor(t *testing.T) {
	home := t.TempDir()
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--home", home, "doctor"})
	if err := root.Execute(); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !strings.Contains(buf.String(), "ok") {
		t.Fatalf("doctor output: %s", buf.String())
	}
}
