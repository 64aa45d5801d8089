package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// ErrDuplicateEntry is returned by InsertEntry when the deterministic
// entry_id already exists - the caller should treat the append as an
// idempotent replay, not an error.
var ErrDuplicateEntry = errors.New("entry already recorded")

// InsertEntry appends a log entry and rolls the project's metrics forward
// in the same transaction, so a crash between the two can never leave
// totals out of sync with the entry table. Insertion is
// ON-CONFLICT-DO-NOTHING on the entry's deterministic id: replaying the
// same append (same project, timestamp, message, agent) is a no-op rather
// than a duplicate row, and InsertEntry reports ErrDuplicateEntry so
// callers can flag the append as a replay of an entry already recorded
// rather than a new one.
func (s *Store) InsertEntry(ctx context.Context, e *LogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertStmt := `INSERT INTO scribe_entries
		(id, project_id, ts, emoji, agent, message, meta, raw_line, sha256, priority, category, tags, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	inserted, err := dialect.UpsertOnConflictDoNothingTx(ctx, tx, s.driver, "id", insertStmt,
		e.ID, e.ProjectID, e.Timestamp, e.Emoji, e.Agent, e.Message, e.Meta,
		e.RawLine, e.SHA256, e.Priority, e.Category, e.Tags, e.Confidence)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	if !inserted {
		return ErrDuplicateEntry
	}

	if err := s.upsertMetrics(ctx, tx, e); err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}

	return tx.Commit()
}

// upsertMetrics increments scribe_metrics for e.ProjectID, creating the row
// on first use.
func (s *Store) upsertMetrics(ctx context.Context, tx *sqlx.Tx, e *LogEntry) error {
	successDelta, warnDelta, errorDelta := 0, 0, 0
	switch e.Priority {
	case "critical", "high":
		errorDelta = 1
	case "medium":
		warnDelta = 1
	default:
		successDelta = 1
	}

	createStmt := `INSERT INTO scribe_metrics (project_id, total_entries, success_count, warn_count, error_count, last_update)
		VALUES (?, 0, 0, 0, 0, ?)`
	if _, err := dialect.UpsertOnConflictDoNothingTx(ctx, tx, s.driver, "project_id", createStmt, e.ProjectID, e.Timestamp); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE scribe_metrics SET
			total_entries = total_entries + 1,
			success_count = success_count + ?,
			warn_count = warn_count + ?,
			error_count = error_count + ?,
			last_update = ?
		WHERE project_id = ?`), successDelta, warnDelta, errorDelta, e.Timestamp, e.ProjectID)
	return err
}

// GetEntry fetches a single entry by its deterministic id.
func (s *Store) GetEntry(ctx context.Context, id string) (*LogEntry, error) {
	var e LogEntry
	err := s.db.GetContext(ctx, &e, s.db.Rebind(`SELECT * FROM scribe_entries WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %q: %w", id, sql.ErrNoRows)
	}
	return &e, err
}

// ReadRecent returns the most recent entries for a project, newest first.
func (s *Store) ReadRecent(ctx context.Context, projectID int64, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []LogEntry
	err := s.db.SelectContext(ctx, &entries, s.db.Rebind(`
		SELECT * FROM scribe_entries WHERE project_id = ? ORDER BY ts DESC LIMIT ?`), projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("read recent: %w", err)
	}
	return entries, nil
}

// QueryEntries filters by optional priority/category, always scoped to a
// project, ordered newest first and capped at limit.
func (s *Store) QueryEntries(ctx context.Context, projectID int64, priority, category string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT * FROM scribe_entries WHERE project_id = ?`
	args := []any{projectID}
	if priority != "" {
		query += ` AND priority = ?`
		args = append(args, priority)
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	var entries []LogEntry
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return entries, nil
}

// GetMetrics returns the roll-up counters for a project.
func (s *Store) GetMetrics(ctx context.Context, projectID int64) (*Metrics, error) {
	var m Metrics
	err := s.db.GetContext(ctx, &m, s.db.Rebind(`SELECT * FROM scribe_metrics WHERE project_id = ?`), projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Metrics{ProjectID: projectID}, nil
	}
	return &m, err
}
