package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// docChangeRetentionLimit bounds doc_changes per project; RecordDocChange
// prunes the oldest rows past this count so the audit trail cannot grow
// without bound across a long-lived repository.
const docChangeRetentionLimit = 500

// RecordDocChange appends a document-mutation audit row and trims the
// project's history back to docChangeRetentionLimit rows.
func (s *Store) RecordDocChange(ctx context.Context, c *DocumentChange) (int64, error) {
	if c.Metadata == "" {
		c.Metadata = "{}"
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `INSERT INTO doc_changes
		(project_id, doc_name, section, action, agent, metadata, sha_before, sha_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := dialect.InsertReturningIDTx(ctx, tx, s.driver, query,
		c.ProjectID, c.DocName, c.Section, c.Action, c.Agent, c.Metadata, c.SHABefore, c.SHAAfter, c.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("record doc change: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		DELETE FROM doc_changes WHERE project_id = ? AND id NOT IN (
			SELECT id FROM doc_changes WHERE project_id = ? ORDER BY created_at DESC LIMIT ?
		)`), c.ProjectID, c.ProjectID, docChangeRetentionLimit); err != nil {
		return 0, fmt.Errorf("prune doc changes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListDocChanges returns recent changes for a document, newest first.
func (s *Store) ListDocChanges(ctx context.Context, projectID int64, docName string, limit int) ([]DocumentChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []DocumentChange
	err := s.db.SelectContext(ctx, &changes, s.db.Rebind(`
		SELECT * FROM doc_changes WHERE project_id = ? AND doc_name = ?
		ORDER BY created_at DESC LIMIT ?`), projectID, docName, limit)
	if err != nil {
		return nil, fmt.Errorf("list doc changes: %w", err)
	}
	return changes, nil
}
