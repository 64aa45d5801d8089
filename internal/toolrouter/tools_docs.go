package toolrouter

import (
	"context"
	"path/filepath"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/docs"
	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/fsutil"
	"github.com/kdlbs/scribe-mcp/internal/sandbox"
	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

func resolveDocPath(project *storage.Project, docName string, targetDir string) string {
	dir := project.DocsDir
	if targetDir != "" {
		dir = targetDir
	}
	if fileName, ok := docs.FileNames[docs.DocName(docName)]; ok {
		return filepath.Join(dir, fileName)
	}
	return filepath.Join(dir, docName+".md")
}

func handleManageDocs(ctx context.Context, r *Router, ec *execctx.ExecutionContext, project *storage.Project, params map[string]any) (*Result, error) {
	action, _ := params["action"].(string)
	if action == "" {
		return nil, scerr.New(scerr.KindParameterValidation, "action is required").WithField("field", "action")
	}
	docName, _ := params["doc_name"].(string)
	targetDir, _ := params["target_dir"].(string)
	path := resolveDocPath(project, docName, targetDir)

	if docs.Action(action) == docs.ActionCreateDoc {
		checker, err := r.safety.GetPermissionChecker(r.cfg.Roots())
		if err != nil {
			return nil, err
		}
		if err := checker.ValidateOperation(sandbox.OpGenerateDocs, sandbox.OpContext{ProjectName: project.Name}); err != nil {
			return nil, err
		}
	}

	vettedPath, err := r.safety.SafeFileOperation(r.cfg.Roots(), path, sandbox.OpAppend, sandbox.OpContext{ProjectName: project.Name})
	if err != nil {
		return nil, err
	}

	req := docs.Request{
		Action:        docs.Action(action),
		Path:          vettedPath,
		ProjectID:     project.ID,
		DocName:       docs.DocName(docName),
		Agent:         agentKeyFromExec(ec),
		DryRun:        boolOr(params["dry_run"]),
		TargetDir:     targetDir,
		Vars:          stringMap(params["vars"]),
		SectionID:     stringOr(params["section_id"], ""),
		Content:       stringOr(params["content"], ""),
		Template:      stringOr(params["template"], ""),
		PatchText:     stringOr(params["patch_text"], ""),
		PatchMode:     docs.PatchMode(stringOr(params["patch_mode"], string(docs.PatchUnified))),
		StartLine:     intOr(params["start_line"], 0),
		EndLine:       intOr(params["end_line"], 0),
		Frontmatter:   anyMap(params["frontmatter"]),
		CheckAnchors:  boolOr(params["check_anchors"]),
		ChecklistText: stringOr(params["checklist_text"], ""),
		CaseSensitive: boolOr(params["case_sensitive"]),
		RequireMatch:  boolOr(params["require_match"]),
	}
	if structEdit, ok := params["structured_edit"].(map[string]any); ok {
		req.StructEdit = docs.StructuredEdit{
			Type:       stringOr(structEdit["type"], ""),
			StartLine:  intOr(structEdit["start_line"], 0),
			EndLine:    intOr(structEdit["end_line"], 0),
			Anchor:     stringOr(structEdit["anchor"], ""),
			NewContent: stringOr(structEdit["new_content"], ""),
		}
	}

	res, err := r.docEngine.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return docResultToResult(res), nil
}

func docResultToResult(res *docs.Result) *Result {
	data := map[string]any{
		"before_hash":   res.BeforeHash,
		"after_hash":    res.AfterHash,
		"diff_preview":  res.DiffPreview,
		"hunks_applied": res.HunksApplied,
	}
	if res.Crosslinks != nil {
		data["crosslinks"] = res.Crosslinks
	}
	if res.Checklist != nil {
		data["checklist"] = res.Checklist
	}
	r := &Result{OK: res.OK, Data: data}
	if len(res.Warnings) > 0 {
		r.Fields = map[string]any{"warnings": res.Warnings}
	}
	return r
}

func handleGenerateDocTemplates(ctx context.Context, r *Router, ec *execctx.ExecutionContext, project *storage.Project, _ map[string]any) (*Result, error) {
	checker, err := r.safety.GetPermissionChecker(r.cfg.Roots())
	if err != nil {
		return nil, err
	}
	if err := checker.ValidateOperation(sandbox.OpGenerateDocs, sandbox.OpContext{ProjectName: project.Name}); err != nil {
		return nil, err
	}

	created := make([]string, 0, len(docs.ScaffoldDocs))
	skipped := make([]string, 0)
	vars := map[string]string{"project": project.Name}

	for _, name := range docs.ScaffoldDocs {
		path := resolveDocPath(project, string(name), "")
		vettedPath, err := r.safety.SafeFileOperation(r.cfg.Roots(), path, sandbox.OpGenerateDocs, sandbox.OpContext{ProjectName: project.Name})
		if err != nil {
			return nil, err
		}
		res, err := r.docEngine.Execute(ctx, docs.Request{
			Action:   docs.ActionCreateDoc,
			Path:     vettedPath,
			ProjectID: project.ID,
			DocName:  name,
			Agent:    agentKeyFromExec(ec),
			Template: docs.DefaultTemplate(name),
			Vars:     vars,
		})
		if err != nil {
			skipped = append(skipped, string(name))
			continue
		}
		if res.OK {
			created = append(created, string(name))
		}
	}

	return &Result{OK: true, Data: map[string]any{"created": created, "skipped": skipped}}, nil
}

func handleRotateLog(ctx context.Context, r *Router, _ *execctx.ExecutionContext, project *storage.Project, _ map[string]any) (*Result, error) {
	checker, err := r.safety.GetPermissionChecker(r.cfg.Roots())
	if err != nil {
		return nil, err
	}
	if err := checker.ValidateOperation(sandbox.OpRotate, sandbox.OpContext{ProjectName: project.Name}); err != nil {
		return nil, err
	}

	vettedPath, err := r.safety.SafeFileOperation(r.cfg.Roots(), project.ProgressLogPath, sandbox.OpRotate, sandbox.OpContext{ProjectName: project.Name})
	if err != nil {
		return nil, err
	}

	priorHash := ""
	if changes, err := r.store.ListDocChanges(ctx, project.ID, "progress_log", 1); err == nil && len(changes) > 0 {
		priorHash = changes[0].SHAAfter
	}

	res, err := fsutil.RotateLog(vettedPath, priorHash, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	_, _ = r.store.RecordDocChange(ctx, &storage.DocumentChange{
		ProjectID: project.ID,
		DocName:   "progress_log",
		Action:    "rotate_log",
		SHABefore: priorHash,
		SHAAfter:  res.ArchiveHash,
	})

	return &Result{OK: true, Data: map[string]any{
		"archive_path": res.ArchivePath,
		"archive_hash": res.ArchiveHash,
		"prior_hash":   res.PriorHash,
	}}, nil
}

func boolOr(v any) bool {
	b, _ := v.(bool)
	return b
}

func anyMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
