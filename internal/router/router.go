// Package router binds agent sessions to projects. A project is resolved
// from a session's working directory via the directory registry; once a
// session is bound it stays bound for its lifetime.
package router

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pedropauloai/claude-agent-monitor/internal/store"
)

// Router resolves working directories to projects and manages the
// write-once session bindings the broadcast layer uses for project filters.
type Router struct {
	Store store.Store
}

// New returns a Router backed by st.
func New(st store.Store) *Router {
	return &Router{Store: st}
}

// RegisterDirectory upserts a registry entry mapping dir to a project.
func (r *Router) RegisterDirectory(ctx context.Context, dir, projectID string, planningPath *string) error {
	return r.Store.UpsertRegistryEntry(ctx, filepath.Clean(dir), projectID, planningPath)
}

// UnregisterDirectory removes a registry entry. Existing session bindings
// are unaffected.
func (r *Router) UnregisterDirectory(ctx context.Context, dir string) error {
	return r.Store.DeleteRegistryEntry(ctx, filepath.Clean(dir))
}

// ResolveProject maps a working directory to a project id. An exact registry
// match wins; otherwise the longest registered directory that is a
// path-boundary prefix of dir wins, so nested checkouts resolve to the most
// specific registration regardless of insertion order.
func (r *Router) ResolveProject(ctx context.Context, dir string) (projectID string, ok bool, err error) {
	dir = filepath.Clean(dir)
	entry, err := r.Store.GetRegistryEntry(ctx, dir)
	if err != nil {
		return "", false, err
	}
	if entry != nil {
		return entry.ProjectID, true, nil
	}

	entries, err := r.Store.ListRegistryEntries(ctx)
	if err != nil {
		return "", false, err
	}
	bestLen := -1
	for _, e := range entries {
		if isPathPrefix(e.Directory, dir) && len(e.Directory) > bestLen {
			bestLen = len(e.Directory)
			projectID = e.ProjectID
		}
	}
	return projectID, bestLen >= 0, nil
}

// BindSession resolves the project for workingDir and binds the session to
// it. Bindings are write-once: if the session is already bound, the existing
// binding is returned unchanged. ok is false when no registered directory
// covers workingDir.
func (r *Router) BindSession(ctx context.Context, sessionID, workingDir string) (projectID string, ok bool, err error) {
	existing, err := r.Store.GetSessionBinding(ctx, sessionID)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.ProjectID, true, nil
	}

	projectID, ok, err = r.ResolveProject(ctx, workingDir)
	if err != nil || !ok {
		return "", false, err
	}
	if err := r.Store.CreateSessionBinding(ctx, sessionID, projectID); err != nil {
		return "", false, err
	}
	// Re-read so a concurrent first registration wins consistently.
	bound, err := r.Store.GetSessionBinding(ctx, sessionID)
	if err != nil {
		return "", false, err
	}
	if bound != nil {
		return bound.ProjectID, true, nil
	}
	return projectID, true, nil
}

// SessionsOfProject returns every session ever bound to the project.
func (r *Router) SessionsOfProject(ctx context.Context, projectID string) ([]string, error) {
	return r.Store.ListProjectSessions(ctx, projectID)
}

// isPathPrefix reports whether prefix covers dir at a path-component
// boundary: /a/b covers /a/b and /a/b/c, but not /a/bc.
func isPathPrefix(prefix, dir string) bool {
	if prefix == dir {
		return true
	}
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(dir, prefix)
}
