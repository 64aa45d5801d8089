package dialect

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InsertReturningID executes an INSERT and returns the auto-generated ID.
//
//	Postgres: appends RETURNING id and scans the result.
//	SQLite:   uses LastInsertId() from the exec result.
func InsertReturningID(ctx context.Context, db *sqlx.DB, query string, args ...any) (int64, error) {
	if IsPostgres(db.DriverName()) {
		var id int64
		err := db.QueryRowContext(ctx, db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert returning id: %w", err)
		}
		return id, nil
	}

	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// InsertReturningIDTx is InsertReturningID for a transaction, where the
// driver name isn't available from the *sqlx.Tx itself and must be passed
// in by the caller.
func InsertReturningIDTx(ctx context.Context, tx *sqlx.Tx, driver string, query string, args ...any) (int64, error) {
	if IsPostgres(driver) {
		var id int64
		err := tx.QueryRowContext(ctx, tx.Rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert returning id: %w", err)
		}
		return id, nil
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpsertOnConflictDoNothing executes an INSERT ... ON CONFLICT DO NOTHING
// (Postgres) or INSERT OR IGNORE (SQLite) and reports whether a row was
// actually inserted. Used for the deterministic-entry-ID idempotent append.
func UpsertOnConflictDoNothing(ctx context.Context, db *sqlx.DB, conflictCols string, query string, args ...any) (inserted bool, err error) {
	var stmt string
	if IsPostgres(db.DriverName()) {
		stmt = query + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", conflictCols)
	} else {
		stmt = insertOrIgnore(query)
	}
	result, err := db.ExecContext(ctx, db.Rebind(stmt), args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertOnConflictDoNothingTx is UpsertOnConflictDoNothing run inside an
// existing transaction, with the driver name passed explicitly since
// *sqlx.Tx does not expose one.
func UpsertOnConflictDoNothingTx(ctx context.Context, tx *sqlx.Tx, driver, conflictCols string, query string, args ...any) (inserted bool, err error) {
	var stmt string
	if IsPostgres(driver) {
		stmt = query + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", conflictCols)
	} else {
		stmt = insertOrIgnore(query)
	}
	result, err := tx.ExecContext(ctx, tx.Rebind(stmt), args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// insertOrIgnore rewrites "INSERT INTO" to "INSERT OR IGNORE INTO" for
// SQLite's conflict-ignoring syntax.
func insertOrIgnore(query string) string {
	const prefix = "INSERT INTO"
	if len(query) >= len(prefix) && query[:len(prefix)] == prefix {
		return "INSERT OR IGNORE INTO" + query[len(prefix):]
	}
	return query
}
