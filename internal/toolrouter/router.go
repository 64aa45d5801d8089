package toolrouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/docs"
	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/logging"
	"github.com/kdlbs/scribe-mcp/internal/plugin"
	"github.com/kdlbs/scribe-mcp/internal/projectctx"
	"github.com/kdlbs/scribe-mcp/internal/reminders"
	"github.com/kdlbs/scribe-mcp/internal/repo"
	"github.com/kdlbs/scribe-mcp/internal/sandbox"
	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

const recentToolsCapacity = 20

// toolCall is one entry in a session's recent-tools ring buffer.
type toolCall struct {
	Name string
	At   time.Time
}

// sessionState is the router's per-session activity tracker: the recent
// tool ring buffer, last-activity timestamp, and session start time the
// reminder engine uses for warm-up/idle calculations.
type sessionState struct {
	mu          sync.Mutex
	recentTools []toolCall
	lastActive  time.Time
	startedAt   time.Time
}

func (s *sessionState) record(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		s.startedAt = at
	}
	s.lastActive = at
	s.recentTools = append(s.recentTools, toolCall{Name: name, At: at})
	if len(s.recentTools) > recentToolsCapacity {
		s.recentTools = s.recentTools[len(s.recentTools)-recentToolsCapacity:]
	}
}

func (s *sessionState) ageMinutes(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return now.Sub(s.startedAt).Minutes()
}

// Router runs the tool invocation pipeline: resolve ExecutionContext,
// track per-session activity, enforce project scope, invoke the tool
// body, merge reminders, and apply entry-limit post-processing.
type Router struct {
	store     *storage.Store
	safety    *sandbox.Safety
	cfg       *repo.Config
	sessions  *execctx.Manager
	projects  *projectctx.Manager
	logEngine *logging.Engine
	docEngine *docs.Engine
	reminders *reminders.Engine
	registry  *plugin.Registry

	mu     sync.Mutex
	states map[string]*sessionState
}

// Deps bundles the components Dispatch wires together.
type Deps struct {
	Store     *storage.Store
	Safety    *sandbox.Safety
	Config    *repo.Config
	Sessions  *execctx.Manager
	Projects  *projectctx.Manager
	LogEngine *logging.Engine
	DocEngine *docs.Engine
	Reminders *reminders.Engine
	Registry  *plugin.Registry
}

// NewRouter builds a Router from its dependencies.
func NewRouter(d Deps) *Router {
	return &Router{
		store:     d.Store,
		safety:    d.Safety,
		cfg:       d.Config,
		sessions:  d.Sessions,
		projects:  d.Projects,
		logEngine: d.LogEngine,
		docEngine: d.DocEngine,
		reminders: d.Reminders,
		registry:  d.Registry,
		states:    make(map[string]*sessionState),
	}
}

func (r *Router) stateFor(sessionID string) *sessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[sessionID]
	if !ok {
		st = &sessionState{}
		r.states[sessionID] = st
	}
	return st
}

// CallInput is everything one tool invocation needs to resolve its
// execution context and run. Mode is derived from Tool via modeForTool,
// not supplied by the caller: the transport layer shouldn't have to
// classify tools itself.
type CallInput struct {
	Tool               string
	TransportSessionID string
	AgentIdentity      execctx.AgentIdentity
	Params             map[string]any
}

// handlerFunc is a project- or sentinel-scoped tool body. project is nil
// for tools that do not require one.
type handlerFunc func(ctx context.Context, r *Router, ec *execctx.ExecutionContext, project *storage.Project, params map[string]any) (*Result, error)

var handlers = map[string]handlerFunc{
	"set_project":            handleSetProject,
	"get_project":            handleGetProject,
	"list_projects":          handleListProjects,
	"append_entry":           handleAppendEntry,
	"read_recent":            handleReadRecent,
	"query_entries":          handleQueryEntries,
	"manage_docs":            handleManageDocs,
	"generate_doc_templates": handleGenerateDocTemplates,
	"rotate_log":             handleRotateLog,
	"health_check":           handleHealthCheck,
	"append_event":           handleAppendEvent,
	"open_bug":               handleOpenBug,
	"open_security":          handleOpenSecurity,
	"link_fix":               handleLinkFix,
}

// Dispatch runs the full pipeline for one tool call.
func (r *Router) Dispatch(ctx context.Context, in CallInput) (*Result, error) {
	handler, ok := handlers[in.Tool]
	if !ok {
		return nil, fmt.Errorf("toolrouter: unknown tool %q", in.Tool)
	}

	mode := modeForTool(in.Tool)
	rawAgentID := agentIdentityKey(in.AgentIdentity)
	sessionID, err := r.sessions.ResolveSession(ctx, in.TransportSessionID, rawAgentID, r.cfg.RepoRoot, mode)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	now := time.Now().UTC()
	ec := execctx.NewExecution(sessionID, in.TransportSessionID, r.cfg.RepoRoot, mode, in.AgentIdentity, in.Tool)
	ctx = execctx.WithExecutionContext(ctx, ec)

	// agent_projects (and every other cross-tenant partition) is keyed on
	// the stable hash, not the raw identity: two repositories served by
	// the same process can otherwise collide on an identical agent kind.
	agentID := execctx.StableAgentHash(ec, "")

	st := r.stateFor(sessionID)
	st.record(in.Tool, now)

	var project *storage.Project
	var result *Result
	var handlerErr error

	if projectScopedTools[in.Tool] {
		project, result, handlerErr = r.resolveProject(ctx, agentID, in.Tool)
		if result != nil {
			return r.finish(ctx, in, ec, st, project, result, now)
		}
		if handlerErr != nil {
			return nil, handlerErr
		}
	}

	result, err = handler(ctx, r, ec, project, in.Params)
	if err != nil {
		result = errorResult(err)
	}
	return r.finish(ctx, in, ec, st, project, result, now)
}

// resolveProject looks up the agent's current project, returning a
// distinguished "no project configured" Result (not an error) when none
// is set, carrying a hint to the most recently accessed project.
func (r *Router) resolveProject(ctx context.Context, agentID, toolName string) (*storage.Project, *Result, error) {
	cur, err := r.projects.GetCurrentProject(ctx, agentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get current project: %w", err)
	}
	if cur.ProjectName == nil || *cur.ProjectName == "" {
		var hints []string
		if recent, err := r.store.MostRecentlyAccessed(ctx, 15*time.Minute); err == nil {
			hints = append(hints, recent.Name)
		}
		return nil, &Result{
			OK:             false,
			Error:          "no project configured for this agent",
			ErrorKind:      string(scerr.KindNotFound),
			Suggestion:     "call set_project before " + toolName,
			RecentProjects: hints,
		}, nil
	}
	p, err := r.store.GetProjectByName(ctx, *cur.ProjectName)
	if err != nil {
		return nil, nil, fmt.Errorf("load current project %q: %w", *cur.ProjectName, err)
	}
	_ = r.store.TouchProjectAccess(ctx, p.ID, time.Now().UTC())
	return p, nil, nil
}

// finish merges the selected reminders into result and applies the
// entry-limit post-processing to any returned entry list.
func (r *Router) finish(ctx context.Context, in CallInput, ec *execctx.ExecutionContext, st *sessionState, project *storage.Project, result *Result, now time.Time) (*Result, error) {
	if result == nil {
		result = &Result{OK: true}
	}

	opStatus := reminders.OpSuccess
	if !result.OK {
		opStatus = reminders.OpFailure
	}

	rc := reminders.Context{
		ToolName:          in.Tool,
		AgentID:           execctx.StableAgentHash(ec, ""),
		SessionID:         ec.SessionID,
		ProjectRoot:       r.cfg.RepoRoot,
		SessionAgeMinutes: floatPtr(st.ageMinutes(now)),
		OperationStatus:   opStatus,
	}
	if project != nil {
		rc.ProjectName = project.Name
		if project.LastEntryAt != nil {
			minutes := now.Sub(*project.LastEntryAt).Minutes()
			rc.MinutesSinceLog = &minutes
		}
		rc.DocsStatus = r.docStatus(project)
		rc.CurrentPhase = r.currentPhase(project)
	}
	if missing, ok := result.Data["tee_skipped_missing"].([]string); ok {
		rc.MissingLogMetadata = missing
	}

	if r.reminders != nil {
		shown, err := r.reminders.Evaluate(ctx, rc)
		if err == nil {
			result.Reminders = shown
		}
	}

	if entries, ok := result.Data["entries"].([]map[string]any); ok {
		format, _ := in.Params["format"].(string)
		pageSize, _ := in.Params["page_size"].(int)
		limit := entryLimitFor(format, pageSize)
		if len(entries) > limit {
			result.Data["entries"] = entries[:limit]
			result.Data["truncated"] = true
		}
	}

	return result, nil
}

func agentIdentityKey(id execctx.AgentIdentity) string {
	if id.InstanceID != "" {
		return id.InstanceID
	}
	return id.Kind
}

func floatPtr(f float64) *float64 { return &f }

func errorResult(err error) *Result {
	if se, ok := err.(*scerr.Error); ok {
		return &Result{OK: false, Error: se.Message, ErrorKind: string(se.Kind), Suggestion: se.Suggestion, Fields: se.Fields}
	}
	return &Result{OK: false, Error: err.Error(), ErrorKind: string(scerr.KindInternal)}
}
