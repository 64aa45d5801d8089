package mcpserver

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/toolrouter"
)

// baseIdentity is resolved once per process from the environment: a
// stdio MCP server is spawned one-per-agent, so agent_kind/agent_model
// are fixed for the process lifetime. instance_id/sub_id/display_name
// may still vary per call (a supervisor multiplexing sub-agents through
// one server) and are read from each call's arguments when present.
func baseIdentity() execctx.AgentIdentity {
	return execctx.AgentIdentity{
		Kind:  envOr("SCRIBE_AGENT_KIND", "unknown"),
		Model: os.Getenv("SCRIBE_AGENT_MODEL"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (s *Server) identityFor(args map[string]any) execctx.AgentIdentity {
	id := s.baseIdentityCache
	id.InstanceID = stringArg(args, "agent_instance_id", id.InstanceID)
	id.SubID = stringArg(args, "agent_sub_id", id.SubID)
	id.DisplayName = stringArg(args, "agent", stringArg(args, "agent_display_name", id.DisplayName))
	return id
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// registerTools adds every Scribe tool to s.mcp, each forwarding to
// s.router.Dispatch.
func (s *Server) registerTools() {
	s.baseIdentityCache = baseIdentity()

	s.mcp.AddTool(
		mcp.NewTool("set_project",
			mcp.WithDescription("Set (or switch to) the active project for this agent. Call this before any other project-scoped tool."),
			mcp.WithString("project_name", mcp.Required(), mcp.Description("Project name, unique within the repository.")),
			mcp.WithNumber("expected_version", mcp.Description("Expected current-project pointer version, for optimistic-concurrency conflict detection.")),
		),
		s.dispatch("set_project"),
	)

	s.mcp.AddTool(
		mcp.NewTool("get_project",
			mcp.WithDescription("Get details of the agent's currently active project."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.dispatch("get_project"),
	)

	s.mcp.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List all known projects in this repository."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithBoolean("include_archived", mcp.Description("Include archived projects (default false).")),
		),
		s.dispatch("list_projects"),
	)

	s.mcp.AddTool(
		mcp.NewTool("append_entry",
			mcp.WithDescription("Append a structured progress-log entry for the active project. Use after completing a meaningful unit of work."),
			mcp.WithString("message", mcp.Required(), mcp.Description("Single-line message describing what was done.")),
			mcp.WithString("agent", mcp.Description("Display name for the acting agent, defaults to this session's identity.")),
			mcp.WithString("status", mcp.Description("Status keyword used to infer priority and emoji: info, success, warn, error, bug, or plan.")),
			mcp.WithString("priority", mcp.Description("One of: critical, high, medium, low.")),
			mcp.WithString("category", mcp.Description("Free-form grouping tag.")),
			mcp.WithString("tags", mcp.Description("Comma-separated tags.")),
			mcp.WithString("emoji", mcp.Description("Override the status-derived emoji.")),
			mcp.WithNumber("confidence", mcp.Description("Confidence score in [0,1]; out-of-range values clamp to 1.0.")),
			mcp.WithObject("metadata", mcp.Description("Arbitrary string-keyed metadata, rendered as key=value pairs.")),
			mcp.WithString("log_type", mcp.Description("Tee this entry into an additional stream (doc_updates, security, bugs) besides the progress log.")),
			mcp.WithString("timestamp", mcp.Description("Explicit timestamp override, RFC3339 or 'YYYY-MM-DD HH:MM:SS TZ'.")),
			mcp.WithBoolean("bulk", mcp.Description("If true, items is a list of entries appended together with staggered timestamps.")),
			mcp.WithArray("items", mcp.Description("Bulk mode: list of entry objects with the same fields as a single append_entry call.")),
		),
		s.dispatch("append_entry"),
	)

	s.mcp.AddTool(
		mcp.NewTool("read_recent",
			mcp.WithDescription("Read the most recent progress-log entries for the active project."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 20).")),
		),
		s.dispatch("read_recent"),
	)

	s.mcp.AddTool(
		mcp.NewTool("query_entries",
			mcp.WithDescription("Query progress-log entries for the active project by priority, category, or confidence."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("priority", mcp.Description("Filter by priority.")),
			mcp.WithString("category", mcp.Description("Filter by category.")),
			mcp.WithNumber("min_confidence", mcp.Description("Drop entries below this confidence.")),
			mcp.WithBoolean("priority_sort", mcp.Description("Sort by priority (critical first) then recency, instead of recency alone.")),
			mcp.WithNumber("page_size", mcp.Description("Maximum entries to return.")),
			mcp.WithString("format", mcp.Description("Response shape: summary, readable, expandable, full, compact, or structured.")),
		),
		s.dispatch("query_entries"),
	)

	s.mcp.AddTool(
		mcp.NewTool("manage_docs",
			mcp.WithDescription("Create or edit the active project's documentation files (architecture, phase plan, checklist, etc.) under transactional hash verification."),
			mcp.WithString("action", mcp.Required(), mcp.Description("create_doc, replace_section, append, apply_patch, replace_range, generate_toc, normalize_headers, validate_crosslinks, or list_checklist_items.")),
			mcp.WithString("doc_name", mcp.Description("One of the well-known document names, or a custom doc_name with target_dir set.")),
			mcp.WithString("target_dir", mcp.Description("Override the project's docs directory for this call.")),
			mcp.WithBoolean("dry_run", mcp.Description("Compute and preview the change without writing it.")),
			mcp.WithObject("vars", mcp.Description("Template variables for create_doc.")),
			mcp.WithString("section_id", mcp.Description("Section marker ID (<!-- ID: ... -->) for replace_section.")),
			mcp.WithString("content", mcp.Description("Content to write for replace_section, append, or replace_range; body for create_doc.")),
			mcp.WithString("template", mcp.Description("Template body override for create_doc.")),
			mcp.WithString("patch_text", mcp.Description("Unified-diff body for action=apply_patch with patch_mode=unified.")),
			mcp.WithString("patch_mode", mcp.Description("For apply_patch: unified (default) or structured (applies structured_edit).")),
			mcp.WithNumber("start_line", mcp.Description("First line (1-indexed) for action=replace_range.")),
			mcp.WithNumber("end_line", mcp.Description("Last line (inclusive) for action=replace_range.")),
			mcp.WithObject("frontmatter", mcp.Description("Front-matter block for the new document, for create_doc.")),
			mcp.WithBoolean("check_anchors", mcp.Description("For validate_crosslinks, also check that each linked anchor matches a heading in its target.")),
			mcp.WithString("checklist_text", mcp.Description("For list_checklist_items, substring to match against item text.")),
			mcp.WithBoolean("case_sensitive", mcp.Description("For list_checklist_items, match checklist_text case-sensitively.")),
			mcp.WithBoolean("require_match", mcp.Description("For list_checklist_items, return only items that match checklist_text.")),
			mcp.WithObject("structured_edit", mcp.Description("Structured edit descriptor: type, start_line, end_line, anchor, new_content.")),
		),
		s.dispatch("manage_docs"),
	)

	s.mcp.AddTool(
		mcp.NewTool("generate_doc_templates",
			mcp.WithDescription("Scaffold the active project's standard documents (architecture, phase plan, checklist) from templates, skipping any that already exist."),
		),
		s.dispatch("generate_doc_templates"),
	)

	s.mcp.AddTool(
		mcp.NewTool("rotate_log",
			mcp.WithDescription("Archive the active project's progress log and start a fresh one, preserving a hash-chained link to the prior archive."),
		),
		s.dispatch("rotate_log"),
	)

	s.mcp.AddTool(
		mcp.NewTool("health_check",
			mcp.WithDescription("Diagnostic report on the server's database, sandbox, and active sessions."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.dispatch("health_check"),
	)

	s.mcp.AddTool(
		mcp.NewTool("append_event",
			mcp.WithDescription("Record a free-form agent activity event, independent of the active project."),
			mcp.WithString("message", mcp.Required(), mcp.Description("What happened.")),
			mcp.WithString("event_type", mcp.Description("Short category label, default 'note'.")),
			mcp.WithObject("metadata", mcp.Description("Arbitrary string-keyed metadata.")),
		),
		s.dispatch("append_event"),
	)

	s.mcp.AddTool(
		mcp.NewTool("open_bug",
			mcp.WithDescription("Open a bug case with a monotonically-assigned per-day ID (BUG-YYYY-MM-DD-NNNN), independent of the active project."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short bug title.")),
			mcp.WithString("description", mcp.Description("Full description.")),
			mcp.WithString("severity", mcp.Description("critical, high, medium, or low (default medium).")),
			mcp.WithString("repro_steps", mcp.Description("Steps to reproduce.")),
			mcp.WithString("affected_repo", mcp.Description("Override the reporting repository slug.")),
		),
		s.dispatch("open_bug"),
	)

	s.mcp.AddTool(
		mcp.NewTool("open_security",
			mcp.WithDescription("Open a security case with a monotonically-assigned per-day ID (SEC-YYYY-MM-DD-NNNN), independent of the active project."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short case title.")),
			mcp.WithString("description", mcp.Description("Full description.")),
			mcp.WithString("severity", mcp.Description("critical, high, medium, or low (default high).")),
			mcp.WithString("cve", mcp.Description("Associated CVE identifier, if any.")),
		),
		s.dispatch("open_security"),
	)

	s.mcp.AddTool(
		mcp.NewTool("link_fix",
			mcp.WithDescription("Link a commit or message to a previously opened bug or security case ID."),
			mcp.WithString("case_id", mcp.Required(), mcp.Description("The BUG-... or SEC-... ID returned by open_bug/open_security.")),
			mcp.WithString("commit_ref", mcp.Description("Commit hash or reference that contains the fix.")),
			mcp.WithString("message", mcp.Description("Description of the fix.")),
		),
		s.dispatch("link_fix"),
	)
}

// dispatch builds the generic ToolHandlerFunc shared by every registered
// tool: translate the MCP request into a toolrouter.CallInput, run it
// through the router, and serialize the Result back as JSON text.
func (s *Server) dispatch(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		transportSessionID := "stdio"
		if session := server.ClientSessionFromContext(ctx); session != nil {
			transportSessionID = session.SessionID()
		}

		result, err := s.router.Dispatch(ctx, toolrouter.CallInput{
			Tool:               tool,
			TransportSessionID: transportSessionID,
			AgentIdentity:      s.identityFor(args),
			Params:             args,
		})
		if err != nil {
			s.logger.Error("tool dispatch failed", zap.String("tool", tool), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		body, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError("failed to serialize result: " + err.Error()), nil
		}
		if !result.OK {
			return mcp.NewToolResultError(string(body)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
