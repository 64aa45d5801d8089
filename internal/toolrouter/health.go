package toolrouter

import (
	"context"
	"os"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// handleHealthCheck is not project-scoped: it reports on the repository
// and process as a whole, independent of whichever project an agent has
// currently set.
func handleHealthCheck(ctx context.Context, r *Router, _ *execctx.ExecutionContext, _ *storage.Project, _ map[string]any) (*Result, error) {
	checks := map[string]any{}
	ok := true

	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.store.DB().PingContext(dbCtx); err != nil {
		checks["database"] = map[string]any{"ok": false, "error": err.Error()}
		ok = false
	} else {
		checks["database"] = map[string]any{"ok": true}
	}

	if info, err := os.Stat(r.cfg.RepoRoot); err != nil || !info.IsDir() {
		checks["repo_root"] = map[string]any{"ok": false, "path": r.cfg.RepoRoot}
		ok = false
	} else {
		checks["repo_root"] = map[string]any{"ok": true, "path": r.cfg.RepoRoot}
	}

	if _, err := r.safety.GetSandbox(r.cfg.Roots()); err != nil {
		checks["sandbox"] = map[string]any{"ok": false, "error": err.Error()}
		ok = false
	} else {
		checks["sandbox"] = map[string]any{"ok": true}
	}

	projects, err := r.store.ListProjects(ctx, true)
	if err != nil {
		checks["projects"] = map[string]any{"ok": false, "error": err.Error()}
		ok = false
	} else {
		checks["projects"] = map[string]any{"ok": true, "count": len(projects)}
	}

	r.mu.Lock()
	activeSessions := len(r.states)
	r.mu.Unlock()

	data := map[string]any{
		"status":          statusLabel(ok),
		"timestamp":       time.Now().UTC(),
		"repo_slug":       r.cfg.RepoSlug,
		"active_sessions": activeSessions,
		"checks":          checks,
	}
	return &Result{OK: ok, Data: data}, nil
}

func statusLabel(ok bool) string {
	if ok {
		return "healthy"
	}
	return "degraded"
}
