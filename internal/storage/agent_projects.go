package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// ErrVersionConflict is returned by SetCurrentProject when the caller's
// expected version no longer matches the stored row - another agent (or
// another tool call from the same agent) updated the pointer first.
var ErrVersionConflict = errors.New("agent_projects version conflict")

// GetCurrentProject returns the agent's current-project pointer, or a
// zero-version row if the agent has never set one (first-run bootstrap).
func (s *Store) GetCurrentProject(ctx context.Context, agentID string) (*AgentProject, error) {
	var ap AgentProject
	err := s.db.GetContext(ctx, &ap, s.db.Rebind(`SELECT * FROM agent_projects WHERE agent_id = ?`), agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return &AgentProject{AgentID: agentID, ProjectName: nil, Version: 0}, nil
	}
	return &ap, err
}

// SetCurrentProject performs an optimistic-concurrency swap on the agent's
// current-project pointer: the row is created on first use (version 0 -> 1)
// and thereafter only updated when expectedVersion matches the stored
// version. A mismatch is ErrVersionConflict, not a generic error, so
// toolrouter can map it to a ConflictError response instead of an internal
// failure.
func (s *Store) SetCurrentProject(ctx context.Context, agentID, projectName, updatedBy, sessionID string, expectedVersion int64, at time.Time) (newVersion int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current AgentProject
	err = tx.GetContext(ctx, &current, tx.Rebind(`SELECT * FROM agent_projects WHERE agent_id = ?`), agentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if expectedVersion != 0 {
			return 0, ErrVersionConflict
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO agent_projects (agent_id, project_name, version, updated_at, updated_by, session_id)
			VALUES (?, ?, 1, ?, ?, ?)`), agentID, projectName, at, updatedBy, sessionID)
		if err != nil {
			return 0, fmt.Errorf("insert agent_projects: %w", err)
		}
		newVersion = 1
	case err != nil:
		return 0, err
	default:
		if current.Version != expectedVersion {
			return 0, ErrVersionConflict
		}
		swapped, casErr := dialect.CompareAndSwapTx(ctx, tx, `
			UPDATE agent_projects SET project_name = ?, version = ?, updated_at = ?, updated_by = ?, session_id = ?
			WHERE agent_id = ? AND version = ?`,
			projectName, expectedVersion+1, at, updatedBy, sessionID, agentID, expectedVersion)
		if casErr != nil {
			return 0, casErr
		}
		if !swapped {
			return 0, ErrVersionConflict
		}
		newVersion = expectedVersion + 1
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newVersion, nil
}
