// Package toolrouter implements the tool invocation pipeline shared by
// every Scribe MCP tool: execution-context resolution, per-session
// activity tracking, project-scope enforcement, reminder merging, and
// entry-limit post-processing, wrapped around the project- and
// sentinel-scoped tool bodies themselves.
package toolrouter

import (
	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/reminders"
)

// Result is the sum-type response every tool call produces: either a
// success payload or a structured error, always carrying whatever
// reminders the engine selected for this call.
type Result struct {
	OK         bool
	Data       map[string]any
	Error      string
	ErrorKind  string
	Suggestion string
	Fields     map[string]any

	Reminders      []reminders.Shown
	RecentProjects []string
}

// entryLimitDefaults are the default page sizes for list-returning tools,
// keyed by response format.
var entryLimitDefaults = map[string]int{
	"summary":    50,
	"readable":   50,
	"expandable": 50,
	"full":       10,
	"compact":    200,
	"structured": 100,
}

func entryLimitFor(format string, override int) int {
	if override > 0 {
		return override
	}
	if n, ok := entryLimitDefaults[format]; ok {
		return n
	}
	return entryLimitDefaults["structured"]
}

// projectScopedTools require the calling agent to have a current project.
var projectScopedTools = map[string]bool{
	"append_entry":           true,
	"query_entries":          true,
	"read_recent":            true,
	"manage_docs":            true,
	"get_project":            true,
	"rotate_log":             true,
	"generate_doc_templates": true,
}

// sentinelScopedTools write to the per-day sentinel JSONL/markdown log
// instead of a project's progress log.
var sentinelScopedTools = map[string]bool{
	"append_event":  true,
	"open_bug":      true,
	"open_security": true,
	"link_fix":      true,
}

// modeForTool derives the execution mode from the tool being called, so
// callers don't have to classify each tool themselves.
func modeForTool(tool string) execctx.Mode {
	if sentinelScopedTools[tool] {
		return execctx.ModeSentinel
	}
	return execctx.ModeProject
}
