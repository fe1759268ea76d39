package router

import (
	"context"
	"testing"

	"github.com/pedropauloai/claude-agent-monitor/internal/store"
)

func newTestRouter(t *testing.T) (*Router, store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st), st
}

func mustProject(t *testing.T, st store.Store, name string) string {
	t.Helper()
	p, err := st.CreateProject(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return p.ProjectID
}

func TestResolveProjectExact(t *testing.T) {
	t.Parallel()

	r, st := newTestRouter(t)
	ctx := context.Background()
	pid := mustProject(t, st, "webapp")

	if err := r.RegisterDirectory(ctx, "/home/dev/webapp", pid, nil); err != nil {
		t.Fatal(err)
	}
	got, ok, err := r.ResolveProject(ctx, "/home/dev/webapp")
	if err != nil || !ok || got != pid {
		t.Fatalf("ResolveProject = %q, %v, %v", got, ok, err)
	}
}

func TestResolveProjectLongestPrefixWins(t *testing.T) {
	t.Parallel()

	r, st := newTestRouter(t)
	ctx := context.Background()
	outer := mustProject(t, st, "monorepo")
	inner := mustProject(t, st, "service")

	// Register outer first, inner second; resolution must not depend on order.
	if err := r.RegisterDirectory(ctx, "/home/dev/mono", outer, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterDirectory(ctx, "/home/dev/mono/services/api", inner, nil); err != nil {
		t.Fatal(err)
	}

	got, ok, _ := r.ResolveProject(ctx, "/home/dev/mono/services/api/handlers")
	if !ok || got != inner {
		t.Fatalf("nested dir resolved to %q, want inner project %q", got, inner)
	}
	got, ok, _ = r.ResolveProject(ctx, "/home/dev/mono/docs")
	if !ok || got != outer {
		t.Fatalf("outer dir resolved to %q, want outer project %q", got, outer)
	}
}

func TestResolveProjectPathBoundary(t *testing.T) {
	t.Parallel()

	r, st := newTestRouter(t)
	ctx := context.Background()
	pid := mustProject(t, st, "p")

	if err := r.RegisterDirectory(ctx, "/home/dev/app", pid, nil); err != nil {
		t.Fatal(err)
	}
	// /home/dev/app is not a prefix of /home/dev/app2 at a path boundary.
	if _, ok, _ := r.ResolveProject(ctx, "/home/dev/app2"); ok {
		t.Fatal("string prefix without path boundary must not resolve")
	}
	if _, ok, _ := r.ResolveProject(ctx, "/somewhere/else"); ok {
		t.Fatal("unregistered dir must not resolve")
	}
}

func TestBindSessionWriteOnce(t *testing.T) {
	t.Parallel()

	r, st := newTestRouter(t)
	ctx := context.Background()
	p1 := mustProject(t, st, "p1")
	p2 := mustProject(t, st, "p2")

	if err := r.RegisterDirectory(ctx, "/dir/one", p1, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterDirectory(ctx, "/dir/two", p2, nil); err != nil {
		t.Fatal(err)
	}

	got, ok, err := r.BindSession(ctx, "sess", "/dir/one")
	if err != nil || !ok || got != p1 {
		t.Fatalf("first bind = %q, %v, %v", got, ok, err)
	}
	// Second bind with a different directory returns the first project.
	got, ok, err = r.BindSession(ctx, "sess", "/dir/two")
	if err != nil || !ok || got != p1 {
		t.Fatalf("rebind = %q, %v, %v; want original %q", got, ok, err, p1)
	}

	sessions, err := r.SessionsOfProject(ctx, p1)
	if err != nil || len(sessions) != 1 || sessions[0] != "sess" {
		t.Fatalf("SessionsOfProject(p1) = %v, %v", sessions, err)
	}
	sessions, _ = r.SessionsOfProject(ctx, p2)
	if len(sessions) != 0 {
		t.Fatalf("SessionsOfProject(p2) = %v, want empty", sessions)
	}
}

func TestBindSessionUnresolvedDirectory(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	_, ok, err := r.BindSession(context.Background(), "sess", "/nowhere")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("bind must fail when no registry entry covers the directory")
	}
}
