package execctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// Manager resolves a stable session_id from a transport's opaque session
// identifier. Lookup has three tiers: an in-memory cache, a durable table
// lookup by transport_session_id, and finally create-and-persist.
type Manager struct {
	store *storage.Store

	mu    sync.RWMutex
	cache map[string]string // transport_session_id -> session_id
}

// NewManager builds a Manager backed by store.
func NewManager(store *storage.Store) *Manager {
	return &Manager{
		store: store,
		cache: make(map[string]string),
	}
}

// ResolveSession returns the stable session_id for a transport session,
// creating and persisting a new AgentSession row on first contact.
func (m *Manager) ResolveSession(ctx context.Context, transportSessionID, agentID, repoRoot string, mode Mode) (string, error) {
	if transportSessionID == "" {
		return "", fmt.Errorf("execctx: empty transport session id")
	}

	m.mu.RLock()
	if sessionID, ok := m.cache[transportSessionID]; ok {
		m.mu.RUnlock()
		return sessionID, nil
	}
	m.mu.RUnlock()

	sess, err := m.store.GetSessionByTransportID(ctx, transportSessionID)
	if err == nil {
		m.cacheSession(transportSessionID, sess.SessionID)
		return sess.SessionID, nil
	}
	if err != storage.ErrSessionNotFound {
		return "", fmt.Errorf("lookup session: %w", err)
	}

	now := time.Now().UTC()
	sessionID := uuid.NewString()
	newSess := &storage.AgentSession{
		SessionID:           sessionID,
		TransportSessionID:  transportSessionID,
		AgentID:             agentID,
		RepoRoot:            repoRoot,
		Mode:                string(mode),
		StartedAt:           now,
		LastActiveAt:        now,
		Status:              string(storage.SessionActive),
	}
	if err := m.store.CreateSession(ctx, newSess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	m.cacheSession(transportSessionID, sessionID)
	return sessionID, nil
}

func (m *Manager) cacheSession(transportSessionID, sessionID string) {
	m.mu.Lock()
	m.cache[transportSessionID] = sessionID
	m.mu.Unlock()
}

// Forget drops a transport session from the in-memory cache, used when a
// session ends so a reused transport id is treated as unseen.
func (m *Manager) Forget(transportSessionID string) {
	m.mu.Lock()
	delete(m.cache, transportSessionID)
	m.mu.Unlock()
}

// NewExecution builds a fresh ExecutionContext for one tool invocation. It
// does not install it on a context.Context - call WithExecutionContext at
// the router's call boundary once the context is fully populated.
func NewExecution(sessionID, transportSessionID, repoRoot string, mode Mode, identity AgentIdentity, intent string) *ExecutionContext {
	ec := &ExecutionContext{
		RepoRoot:           repoRoot,
		Mode:               mode,
		SessionID:          sessionID,
		ExecutionID:        uuid.NewString(),
		AgentIdentity:      identity,
		Intent:             intent,
		Timestamp:          time.Now().UTC(),
		TransportSessionID: transportSessionID,
	}
	if mode == ModeSentinel {
		ec.SentinelDay = ec.Timestamp.Format("2006-01-02")
	}
	return ec
}
