package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/db/dialect"
)

// ErrSessionNotFound is returned when a session_id has no matching row.
var ErrSessionNotFound = errors.New("session not found")

// GetSessionByTransportID looks up the durable AgentSession bound to a
// transport-level session id, the second tier of the execution context's
// identity lookup (in-memory cache is the first).
func (s *Store) GetSessionByTransportID(ctx context.Context, transportSessionID string) (*AgentSession, error) {
	var sess AgentSession
	err := s.db.GetContext(ctx, &sess, s.db.Rebind(`
		SELECT * FROM scribe_sessions WHERE transport_session_id = ? ORDER BY started_at DESC LIMIT 1`),
		transportSessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return &sess, err
}

// GetSession fetches by durable session_id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*AgentSession, error) {
	var sess AgentSession
	err := s.db.GetContext(ctx, &sess, s.db.Rebind(`SELECT * FROM scribe_sessions WHERE session_id = ?`), sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return &sess, err
}

// CreateSession persists a newly minted AgentSession (third tier of the
// identity lookup: create-and-persist when no cache or durable hit exists).
func (s *Store) CreateSession(ctx context.Context, sess *AgentSession) error {
	if sess.Status == "" {
		sess.Status = string(SessionActive)
	}
	if sess.Metadata == "" {
		sess.Metadata = "{}"
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO scribe_sessions
			(session_id, transport_session_id, agent_id, repo_root, mode, started_at, last_active_at, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sess.SessionID, sess.TransportSessionID, sess.AgentID, sess.RepoRoot, sess.Mode,
		sess.StartedAt, sess.LastActiveAt, sess.Status, sess.Metadata)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// HeartbeatSession bumps last_active_at, reviving an expired session back
// to active since a heartbeat is itself proof of liveness.
func (s *Store) HeartbeatSession(ctx context.Context, sessionID string, at time.Time) error {
	touched, err := dialect.CompareAndSwap(ctx, s.db, `
		UPDATE scribe_sessions SET last_active_at = ?, status = ?
		WHERE session_id = ? AND status != ?`,
		at, string(SessionActive), sessionID, string(SessionEnded))
	if err != nil {
		return err
	}
	if !touched {
		return ErrSessionNotFound
	}
	return nil
}

// EndSession marks a session ended. Idempotent: ending an already-ended
// session is not an error.
func (s *Store) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE scribe_sessions SET status = ?, last_active_at = ? WHERE session_id = ?`),
		string(SessionEnded), at, sessionID)
	return err
}

// CleanupExpiredSessions marks sessions idle past ttl as expired and
// returns how many were transitioned.
func (s *Store) CleanupExpiredSessions(ctx context.Context, ttl time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-ttl)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE scribe_sessions SET status = ?
		WHERE status = ? AND last_active_at < ?`),
		string(SessionExpired), string(SessionActive), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
