// Package storage implements Scribe's durable backend: schema management
// and the queries issued by the execution-context, logging, document, and
// reminder subsystems. Two drivers are supported - an embedded SQLite file
// (default) and a networked PostgreSQL server - selected by RepoConfig.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kdlbs/scribe-mcp/internal/db"
	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// Store wraps the backing database connection and exposes the Scribe
// schema's query surface. All queries are parameterized.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Config selects and configures a storage backend.
type Config struct {
	// Backend is "embedded" (SQLite) or "server" (PostgreSQL).
	Backend string
	// DBPath is the SQLite file path, used when Backend == "embedded".
	DBPath string
	// DBURL is the PostgreSQL DSN, used when Backend == "server".
	DBURL    string
	MaxConns int
	MinConns int
}

// Open opens the configured backend and runs idempotent migrations.
func Open(cfg Config) (*Store, error) {
	var (
		sqlDB  *sql.DB
		driver string
		err    error
	)

	switch cfg.Backend {
	case "server":
		sqlDB, err = db.OpenPostgres(cfg.DBURL, cfg.MaxConns, cfg.MinConns)
		driver = dialect.PGX
	case "embedded", "":
		path := cfg.DBPath
		if path == "" {
			path = "./scribe.db"
		}
		sqlDB, err = db.OpenSQLite(path)
		driver = dialect.SQLite3
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	sqlxDB := sqlx.NewDb(sqlDB, driver)
	s := &Store{db: sqlxDB, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		_ = sqlxDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewFromDB wraps an already-open *sqlx.DB, running migrations. Used by
// tests to inject an in-memory SQLite database.
func NewFromDB(sqlxDB *sqlx.DB) (*Store, error) {
	s := &Store{db: sqlxDB, driver: sqlxDB.DriverName()}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying *sqlx.DB for packages that need raw access
// (e.g. transactions spanning multiple repositories' queries).
func (s *Store) DB() *sqlx.DB { return s.db }

// Driver reports the active dialect ("sqlite3" or "pgx").
func (s *Store) Driver() string { return s.driver }

func (s *Store) isPostgres() bool { return dialect.IsPostgres(s.driver) }
