package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// RecordReminderShown logs that a reminder was surfaced to a session, used
// by the cooldown engine to avoid repeating the same nudge too often.
// Rows cascade-delete when their session row is deleted (schema FK ON
// DELETE CASCADE); EndSession only marks a session ended, so its reminder
// history stays in place.
func (s *Store) RecordReminderShown(ctx context.Context, r *ReminderHistoryEntry) (int64, error) {
	if r.ContextMetadata == "" {
		r.ContextMetadata = "{}"
	}
	if r.ShownAt.IsZero() {
		r.ShownAt = time.Now().UTC()
	}
	query := `INSERT INTO reminder_history
		(session_id, reminder_hash, project_root, agent_id, tool_name, reminder_key, shown_at, operation_status, context_metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := dialect.InsertReturningID(ctx, s.db, query,
		r.SessionID, r.ReminderHash, r.ProjectRoot, r.AgentID, r.ToolName, r.ReminderKey,
		r.ShownAt, r.OperationStatus, r.ContextMetadata)
	if err != nil {
		return 0, fmt.Errorf("record reminder shown: %w", err)
	}
	return id, nil
}

// LastShown returns the most recent time a given reminder hash was shown
// within a session, used to evaluate cooldown windows. A zero time with no
// error means it has never been shown.
func (s *Store) LastShown(ctx context.Context, sessionID, reminderHash string) (time.Time, error) {
	var shownAt time.Time
	err := s.db.GetContext(ctx, &shownAt, s.db.Rebind(`
		SELECT shown_at FROM reminder_history
		WHERE session_id = ? AND reminder_hash = ?
		ORDER BY shown_at DESC LIMIT 1`), sessionID, reminderHash)
	if err != nil {
		return time.Time{}, nil // nolint:nilerr // sql.ErrNoRows and other lookup misses both mean "never shown"
	}
	return shownAt, nil
}

// CountShownSince counts reminders of a given tool/category shown to a
// session since a cutoff, used for the teaching-category per-session cap.
func (s *Store) CountShownSince(ctx context.Context, sessionID, toolName string, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, s.db.Rebind(`
		SELECT COUNT(*) FROM reminder_history
		WHERE session_id = ? AND tool_name = ? AND shown_at >= ?`), sessionID, toolName, since)
	return count, err
}
