// Package dialect provides SQL fragment helpers for SQLite/PostgreSQL
// portability across Scribe's two storage drivers (embedded SQLite,
// networked PostgreSQL).
package dialect

const (
	SQLite3 = "sqlite3"
	PGX     = "pgx"
)

// IsPostgres reports whether driver names the PostgreSQL (pgx) backend.
func IsPostgres(driver string) bool {
	return driver == PGX
}

// BoolToInt converts a boolean to an integer for SQL storage (SQLite has no
// native boolean column type).
func BoolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// JSONColumnType returns the column type used for JSON-shaped columns:
// JSONB on Postgres, TEXT on SQLite (encoded as a JSON string by callers).
func JSONColumnType(driver string) string {
	if IsPostgres(driver) {
		return "JSONB"
	}
	return "TEXT"
}

// AutoIncrementPK returns the primary-key column definition for an
// auto-incrementing integer ID.
func AutoIncrementPK(driver string) string {
	if IsPostgres(driver) {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}
