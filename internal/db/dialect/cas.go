package dialect

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// ErrNoRowsAffected is returned by CompareAndSwap when the WHERE clause
// (typically `version = ?`) matched zero rows - the caller should treat
// this as an optimistic-concurrency conflict.
var ErrNoRowsAffected = sql.ErrNoRows

// CompareAndSwap executes an UPDATE ... WHERE <condition including expected
// version> and reports whether exactly one row was updated. It is dialect
// agnostic: both drivers support plain UPDATE with RowsAffected().
func CompareAndSwap(ctx context.Context, db *sqlx.DB, query string, args ...any) (bool, error) {
	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompareAndSwapTx is CompareAndSwap run inside an existing transaction,
// for callers (like the agent_projects pointer swap) that read-then-update
// the same row under one commit.
func CompareAndSwapTx(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (bool, error) {
	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
