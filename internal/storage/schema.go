package storage

import (
	"context"
	"fmt"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// upInitialSchema creates the core Scribe tables. JSON-shaped columns are
// stored as TEXT (JSON-encoded strings) on both drivers - the app layer
// never needs Postgres JSONB operators, so a single portable representation
// avoids dialect branching at every call site.
func upInitialSchema(ctx context.Context, s *Store) error {
	pk := dialect.AutoIncrementPK(s.driver)

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scribe_projects (
			id %s,
			name TEXT NOT NULL UNIQUE,
			repo_root TEXT NOT NULL,
			progress_log_path TEXT NOT NULL,
			docs_dir TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'planning',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_entry_at TIMESTAMP,
			last_access_at TIMESTAMP,
			last_status_change TIMESTAMP,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			baseline_hashes TEXT NOT NULL DEFAULT '{}',
			current_hashes TEXT NOT NULL DEFAULT '{}',
			meta TEXT NOT NULL DEFAULT '{}'
		)`, pk),

		`CREATE TABLE IF NOT EXISTS scribe_entries (
			id TEXT PRIMARY KEY,
			project_id INTEGER NOT NULL REFERENCES scribe_projects(id),
			ts TIMESTAMP NOT NULL,
			emoji TEXT NOT NULL DEFAULT '',
			agent TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			meta TEXT NOT NULL DEFAULT '{}',
			raw_line TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'medium',
			category TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 1.0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_priority_ts ON scribe_entries (priority, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_category_ts ON scribe_entries (category, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_project_priority_category ON scribe_entries (project_id, priority, category)`,

		`CREATE TABLE IF NOT EXISTS scribe_metrics (
			project_id INTEGER PRIMARY KEY REFERENCES scribe_projects(id),
			total_entries INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			warn_count INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			last_update TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS scribe_sessions (
			session_id TEXT PRIMARY KEY,
			transport_session_id TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			repo_root TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT 'project',
			started_at TIMESTAMP NOT NULL,
			last_active_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_transport ON scribe_sessions (transport_session_id)`,

		`CREATE TABLE IF NOT EXISTS agent_projects (
			agent_id TEXT PRIMARY KEY,
			project_name TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL,
			updated_by TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT ''
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS agent_events (
			id %s,
			event_type TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			from_project TEXT,
			to_project TEXT,
			version_info TEXT NOT NULL DEFAULT '{}',
			success INTEGER NOT NULL DEFAULT 1,
			context TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_agent_events_agent ON agent_events (agent_id, created_at)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS doc_changes (
			id %s,
			project_id INTEGER NOT NULL REFERENCES scribe_projects(id),
			doc_name TEXT NOT NULL,
			section TEXT,
			action TEXT NOT NULL,
			agent TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			sha_before TEXT NOT NULL DEFAULT '',
			sha_after TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_doc_changes_project ON doc_changes (project_id, created_at)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS reminder_history (
			id %s,
			session_id TEXT NOT NULL REFERENCES scribe_sessions(session_id) ON DELETE CASCADE,
			reminder_hash TEXT NOT NULL,
			project_root TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			reminder_key TEXT NOT NULL DEFAULT '',
			shown_at TIMESTAMP NOT NULL,
			operation_status TEXT NOT NULL CHECK (operation_status IN ('success','failure','neutral')),
			context_metadata TEXT NOT NULL DEFAULT '{}'
		)`, pk),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func upDocChangesIndex(ctx context.Context, s *Store) error {
	_, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_doc_changes_doc_name ON doc_changes (project_id, doc_name, created_at)`)
	return err
}

func upReminderHistoryIndexes(ctx context.Context, s *Store) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_reminder_history_session_hash ON reminder_history (session_id, reminder_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_reminder_history_shown_at ON reminder_history (shown_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reminder_history_session_tool ON reminder_history (session_id, tool_name)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
