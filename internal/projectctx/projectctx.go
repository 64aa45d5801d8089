// Package projectctx implements per-agent project context: session leases
// and the optimistic-concurrency pointer from an agent to the project it
// is currently working on.
package projectctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// Manager implements the agent-scoped project context operations.
type Manager struct {
	store   *storage.Store
	idleTTL time.Duration
}

// NewManager builds a Manager with the given session idle TTL (spec
// default: 45 minutes).
func NewManager(store *storage.Store, idleTTL time.Duration) *Manager {
	return &Manager{store: store, idleTTL: idleTTL}
}

// CurrentProject is the read view returned by GetCurrentProject and
// SetCurrentProject.
type CurrentProject struct {
	ProjectName *string
	Version     int64
	UpdatedAt   time.Time
}

// StartSession creates a new AgentSession with a fresh session ID and
// grants a lease. It does not look up or refresh an existing session.
func (m *Manager) StartSession(ctx context.Context, agentID, repoRoot, mode, metadataJSON string) (string, error) {
	sessionID := uuid.NewString()
	now := time.Now().UTC()
	sess := &storage.AgentSession{
		SessionID:          sessionID,
		TransportSessionID: sessionID,
		AgentID:            agentID,
		RepoRoot:           repoRoot,
		Mode:               mode,
		StartedAt:          now,
		LastActiveAt:       now,
		Status:             string(storage.SessionActive),
		Metadata:           metadataJSON,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return sessionID, nil
}

// SetCurrentProject validates the session lease and performs an optimistic
// compare-and-swap on the agent's current-project pointer. If
// expectedVersion is nil the call is an unconditional upsert that bumps the
// version by one; otherwise the write only proceeds if the stored version
// matches.
func (m *Manager) SetCurrentProject(ctx context.Context, agentID string, projectName *string, sessionID string, expectedVersion *int64, updatedBy, progressLogPath, docsDir string) (*CurrentProject, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, scerr.New(scerr.KindSessionExpired, "session not found").
				WithField("session_id", sessionID)
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess.AgentID != agentID || sess.Status != string(storage.SessionActive) {
		return nil, scerr.New(scerr.KindSessionExpired, "session does not own this agent").
			WithField("agent_id", agentID).WithField("session_id", sessionID)
	}

	current, err := m.store.GetCurrentProject(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("read current project: %w", err)
	}

	wantVersion := current.Version
	if expectedVersion != nil {
		wantVersion = *expectedVersion
	}

	var projectNameVal string
	if projectName != nil {
		projectNameVal = *projectName
	}

	if projectName != nil {
		if _, err := m.ensureProjectExists(ctx, *projectName, sess.RepoRoot, progressLogPath, docsDir); err != nil {
			return nil, fmt.Errorf("ensure project exists: %w", err)
		}
	}

	now := time.Now().UTC()
	newVersion, err := m.store.SetCurrentProject(ctx, agentID, projectNameVal, updatedBy, sessionID, wantVersion, now)
	if err != nil {
		if err == storage.ErrVersionConflict {
			m.recordEvent(ctx, "conflict_detected", agentID, current.ProjectName, projectName, current.Version, wantVersion, -1, false)
			return nil, scerr.New(scerr.KindConflict, "agent_projects version conflict").
				WithField("expected_version", wantVersion).
				WithField("actual_version", current.Version)
		}
		return nil, fmt.Errorf("set current project: %w", err)
	}

	eventType := "project_set"
	if current.ProjectName != nil && projectName != nil && *current.ProjectName != *projectName {
		eventType = "project_switched"
	}
	m.recordEvent(ctx, eventType, agentID, current.ProjectName, projectName, current.Version, wantVersion, newVersion, true)

	return &CurrentProject{ProjectName: projectName, Version: newVersion, UpdatedAt: now}, nil
}

// GetCurrentProject is a read-through accessor; returns a nil ProjectName
// if the agent has never set one.
func (m *Manager) GetCurrentProject(ctx context.Context, agentID string) (*CurrentProject, error) {
	ap, err := m.store.GetCurrentProject(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return &CurrentProject{ProjectName: ap.ProjectName, Version: ap.Version, UpdatedAt: ap.UpdatedAt}, nil
}

// HeartbeatSession extends a session's lease.
func (m *Manager) HeartbeatSession(ctx context.Context, sessionID string) error {
	return m.store.HeartbeatSession(ctx, sessionID, time.Now().UTC())
}

// EndSession releases a session's lease.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	return m.store.EndSession(ctx, sessionID, time.Now().UTC())
}

// CleanupExpiredSessions marks sessions idle past the configured TTL.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return m.store.CleanupExpiredSessions(ctx, m.idleTTL, time.Now().UTC())
}

// GetAgentEvents returns the audit trail for an agent.
func (m *Manager) GetAgentEvents(ctx context.Context, agentID string, limit int) ([]storage.AgentEvent, error) {
	return m.store.GetAgentEvents(ctx, agentID, limit)
}

// ensureProjectExists implements the first-run bootstrap fallback: a
// set_current_project call naming a project that has never been persisted
// creates the corresponding Project row.
func (m *Manager) ensureProjectExists(ctx context.Context, name, repoRoot, progressLogPath, docsDir string) (*storage.Project, error) {
	p, err := m.store.GetProjectByName(ctx, name)
	if err == nil {
		return p, nil
	}
	if err != storage.ErrProjectNotFound {
		return nil, err
	}
	p = &storage.Project{
		Name:            name,
		RepoRoot:        repoRoot,
		ProgressLogPath: progressLogPath,
		DocsDir:         docsDir,
		Status:          string(storage.ProjectPlanning),
	}
	id, err := m.store.CreateProject(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return p, nil
}

func (m *Manager) recordEvent(ctx context.Context, eventType, agentID string, from, to *string, before, expected, after int64, success bool) {
	successInt := 0
	if success {
		successInt = 1
	}
	versionInfo := fmt.Sprintf(`{"before":%d,"expected":%d,"after":%d}`, before, expected, after)
	_, _ = m.store.RecordEvent(ctx, &storage.AgentEvent{
		EventType:   eventType,
		AgentID:     agentID,
		FromProject: from,
		ToProject:   to,
		VersionInfo: versionInfo,
		Success:     successInt,
		CreatedAt:   time.Now().UTC(),
	})
}
