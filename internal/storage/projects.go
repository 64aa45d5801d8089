package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// ErrProjectNotFound is returned by GetProjectByName and
// MostRecentlyAccessed when no row matches.
var ErrProjectNotFound = errors.New("project not found")

// GetProjectByName fetches a project by its unique name.
func (s *Store) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	var p Project
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`SELECT * FROM scribe_projects WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %q: %w", name, err)
	}
	return &p, nil
}

// CreateProject inserts a new project row. name must be unique; a
// duplicate insert returns the underlying driver's unique-violation error.
func (s *Store) CreateProject(ctx context.Context, p *Project) (int64, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = string(ProjectPlanning)
	}
	if p.BaselineHashes == "" {
		p.BaselineHashes = "{}"
	}
	if p.CurrentHashes == "" {
		p.CurrentHashes = "{}"
	}
	if p.Meta == "" {
		p.Meta = "{}"
	}

	query := `INSERT INTO scribe_projects
		(name, repo_root, progress_log_path, docs_dir, status, created_at, updated_at,
		 description, tags, baseline_hashes, current_hashes, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return dialect.InsertReturningID(ctx, s.db, query,
		p.Name, p.RepoRoot, p.ProgressLogPath, p.DocsDir, p.Status, p.CreatedAt, p.UpdatedAt,
		p.Description, p.Tags, p.BaselineHashes, p.CurrentHashes, p.Meta)
}

// TouchProjectEntry bumps last_entry_at/last_access_at after an append.
func (s *Store) TouchProjectEntry(ctx context.Context, projectID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE scribe_projects SET last_entry_at = ?, last_access_at = ?, updated_at = ?
		WHERE id = ?`), at, at, at, projectID)
	return err
}

// TouchProjectAccess bumps last_access_at without implying a new entry.
func (s *Store) TouchProjectAccess(ctx context.Context, projectID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE scribe_projects SET last_access_at = ?, updated_at = ? WHERE id = ?`), at, at, projectID)
	return err
}

// SetProjectStatus transitions status, recording last_status_change.
func (s *Store) SetProjectStatus(ctx context.Context, projectID int64, status ProjectStatus, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE scribe_projects SET status = ?, last_status_change = ?, updated_at = ? WHERE id = ?`),
		string(status), at, at, projectID)
	return err
}

// UpdateProjectHashes persists the current per-doc hash map (JSON) after a
// document mutation.
func (s *Store) UpdateProjectHashes(ctx context.Context, projectID int64, currentHashesJSON string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE scribe_projects SET current_hashes = ?, updated_at = ? WHERE id = ?`),
		currentHashesJSON, time.Now().UTC(), projectID)
	return err
}

// ListProjects returns all projects, leaving out archived ones unless
// includeArchived is set, ordered by last access, most-recent first.
func (s *Store) ListProjects(ctx context.Context, includeArchived bool) ([]Project, error) {
	query := `SELECT * FROM scribe_projects`
	if !includeArchived {
		query += ` WHERE status != 'archived'`
	}
	query += ` ORDER BY last_access_at DESC NULLS LAST, updated_at DESC`
	if s.driver != dialect.PGX {
		// SQLite lacks NULLS LAST; emulate via an ORDER BY expression.
		query = `SELECT * FROM scribe_projects`
		if !includeArchived {
			query += ` WHERE status != 'archived'`
		}
		query += ` ORDER BY (last_access_at IS NULL), last_access_at DESC, updated_at DESC`
	}
	var projects []Project
	if err := s.db.SelectContext(ctx, &projects, query); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// MostRecentlyAccessed returns the project most recently accessed within
// the given window, used to hint a "no project configured" response.
func (s *Store) MostRecentlyAccessed(ctx context.Context, within time.Duration) (*Project, error) {
	cutoff := time.Now().UTC().Add(-within)
	var p Project
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`
		SELECT * FROM scribe_projects WHERE last_access_at >= ?
		ORDER BY last_access_at DESC LIMIT 1`), cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
