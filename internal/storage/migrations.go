package storage

import (
	"context"
	"fmt"
)

// migration is one forward-only, idempotent schema step. id must be stable
// and unique for all time - it is the migrations-table primary key.
type migration struct {
	id   string
	up   func(ctx context.Context, s *Store) error
	verify func(ctx context.Context, s *Store) (bool, error)
}

// migrate runs pending migrations in order. Re-running migrate on an
// already-migrated database is a no-op: each step is skipped once its id
// is recorded in schema_migrations, and verify (when present) confirms the
// expected shape exists before the step is considered applied.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations() {
		applied, err := s.migrationApplied(ctx, m.id)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.id, err)
		}
		if applied {
			continue
		}
		if err := m.up(ctx, s); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.id, err)
		}
		if m.verify != nil {
			ok, err := m.verify(ctx, s)
			if err != nil {
				return fmt.Errorf("verify migration %s: %w", m.id, err)
			}
			if !ok {
				return fmt.Errorf("migration %s applied but verification failed", m.id)
			}
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (id) VALUES (?)`, m.id); err != nil {
			return fmt.Errorf("record migration %s: %w", m.id, err)
		}
	}
	return nil
}

func (s *Store) migrationApplied(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, s.db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE id = ?`), id)
	return count > 0, err
}

// columnExists checks, dialect-appropriately, whether a column is present
// on a table - used to verify additive migrations actually took effect.
func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	if s.isPostgres() {
		var count int
		err := s.db.GetContext(ctx, &count, `
			SELECT COUNT(*) FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2`, table, column)
		return count > 0, err
	}
	rows, err := s.db.QueryxContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return false, err
		}
		// PRAGMA table_info columns: cid, name, type, notnull, dflt_value, pk
		if len(cols) > 1 {
			if name, ok := cols[1].(string); ok && name == column {
				return true, nil
			}
			if name, ok := cols[1].([]byte); ok && string(name) == column {
				return true, nil
			}
		}
	}
	return false, rows.Err()
}

func migrations() []migration {
	return []migration{
		{id: "0001_initial_schema", up: upInitialSchema},
		{id: "0002_doc_changes_retention_index", up: upDocChangesIndex},
		{id: "0003_reminder_history_indexes", up: upReminderHistoryIndexes},
	}
}
