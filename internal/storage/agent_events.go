package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// RecordEvent appends an audit row for a project-context transition.
func (s *Store) RecordEvent(ctx context.Context, e *AgentEvent) (int64, error) {
	if e.VersionInfo == "" {
		e.VersionInfo = "{}"
	}
	if e.Context == "" {
		e.Context = "{}"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO agent_events
		(event_type, agent_id, from_project, to_project, version_info, success, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := dialect.InsertReturningID(ctx, s.db, query,
		e.EventType, e.AgentID, e.FromProject, e.ToProject, e.VersionInfo,
		e.Success, e.Context, e.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	return id, nil
}

// GetAgentEvents returns recent events for an agent, newest first.
func (s *Store) GetAgentEvents(ctx context.Context, agentID string, limit int) ([]AgentEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	var events []AgentEvent
	err := s.db.SelectContext(ctx, &events, s.db.Rebind(`
		SELECT * FROM agent_events WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?`), agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("get agent events: %w", err)
	}
	return events, nil
}
