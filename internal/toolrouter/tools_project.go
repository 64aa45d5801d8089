package toolrouter

import (
	"context"

	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// handleSetProject is not project-scoped (it is how an agent acquires a
// project), so it is dispatched with project == nil.
func handleSetProject(ctx context.Context, r *Router, ec *execctx.ExecutionContext, _ *storage.Project, params map[string]any) (*Result, error) {
	name, _ := params["project_name"].(string)
	if name == "" {
		return nil, scerr.New(scerr.KindParameterValidation, "project_name is required").
			WithField("field", "project_name")
	}

	var expected *int64
	if v, ok := params["expected_version"].(int64); ok {
		expected = &v
	} else if v, ok := params["expected_version"].(float64); ok {
		ev := int64(v)
		expected = &ev
	}

	progressLogPath := r.cfg.ProgressLogPath(name)
	docsDir := r.cfg.ProjectDocsDir(name)

	agentID := execctx.StableAgentHash(ec, "")
	cur, err := r.projects.SetCurrentProject(ctx, agentID, &name, ec.SessionID, expected, agentKeyFromExec(ec), progressLogPath, docsDir)
	if err != nil {
		return nil, err
	}

	return &Result{OK: true, Data: map[string]any{
		"project_name": name,
		"version":      cur.Version,
		"updated_at":   cur.UpdatedAt,
	}}, nil
}

func handleGetProject(ctx context.Context, r *Router, ec *execctx.ExecutionContext, project *storage.Project, _ map[string]any) (*Result, error) {
	metrics, err := r.store.GetMetrics(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return &Result{OK: true, Data: map[string]any{
		"project_name":      project.Name,
		"status":            project.Status,
		"progress_log_path": project.ProgressLogPath,
		"docs_dir":          project.DocsDir,
		"total_entries":     metrics.TotalEntries,
		"last_entry_at":     project.LastEntryAt,
	}}, nil
}

func handleListProjects(ctx context.Context, r *Router, _ *execctx.ExecutionContext, _ *storage.Project, params map[string]any) (*Result, error) {
	includeArchived, _ := params["include_archived"].(bool)
	projects, err := r.store.ListProjects(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		entries = append(entries, map[string]any{
			"name":          p.Name,
			"status":        p.Status,
			"last_entry_at": p.LastEntryAt,
			"description":   p.Description,
		})
	}
	return &Result{OK: true, Data: map[string]any{"entries": entries}}, nil
}

func agentKeyFromExec(ec *execctx.ExecutionContext) string {
	if ec.AgentIdentity.InstanceID != "" {
		return ec.AgentIdentity.InstanceID
	}
	return ec.AgentIdentity.Kind
}
