package storage

import "time"

// ProjectStatus enumerates the lifecycle of a Project.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectPaused     ProjectStatus = "paused"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectArchived   ProjectStatus = "archived"
)

// Project is the unit of agent work within a repository.
type Project struct {
	ID               int64      `db:"id"`
	Name             string     `db:"name"`
	RepoRoot         string     `db:"repo_root"`
	ProgressLogPath  string     `db:"progress_log_path"`
	DocsDir          string     `db:"docs_dir"`
	Status           string     `db:"status"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	LastEntryAt      *time.Time `db:"last_entry_at"`
	LastAccessAt     *time.Time `db:"last_access_at"`
	LastStatusChange *time.Time `db:"last_status_change"`
	Description      string     `db:"description"`
	Tags             string     `db:"tags"`
	BaselineHashes   string     `db:"baseline_hashes"` // JSON: doc name -> sha256
	CurrentHashes    string     `db:"current_hashes"`  // JSON: doc name -> sha256
	Meta             string     `db:"meta"`             // JSON
}

// LogEntry is an append-only progress-log record.
type LogEntry struct {
	ID         string    `db:"id"` // deterministic 32-hex entry_id
	ProjectID  int64     `db:"project_id"`
	Timestamp  time.Time `db:"ts"`
	Emoji      string    `db:"emoji"`
	Agent      string    `db:"agent"`
	Message    string    `db:"message"`
	Meta       string    `db:"meta"` // JSON map[string]string
	RawLine    string    `db:"raw_line"`
	SHA256     string    `db:"sha256"`
	Priority   string    `db:"priority"`
	Category   string    `db:"category"`
	Tags       string    `db:"tags"`
	Confidence float64   `db:"confidence"`
}

// Metrics tracks per-project roll-up counters, updated in the same
// transaction as each entry insert.
type Metrics struct {
	ProjectID    int64      `db:"project_id"`
	TotalEntries int64      `db:"total_entries"`
	SuccessCount int64      `db:"success_count"`
	WarnCount    int64      `db:"warn_count"`
	ErrorCount   int64      `db:"error_count"`
	LastUpdate   *time.Time `db:"last_update"`
}

// SessionStatus enumerates AgentSession lifecycle states.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
	SessionEnded   SessionStatus = "ended"
)

// AgentSession is a long-lived agent identity tied to a transport session.
type AgentSession struct {
	SessionID           string    `db:"session_id"`
	TransportSessionID  string    `db:"transport_session_id"`
	AgentID             string    `db:"agent_id"`
	RepoRoot            string    `db:"repo_root"`
	Mode                string    `db:"mode"`
	StartedAt           time.Time `db:"started_at"`
	LastActiveAt        time.Time `db:"last_active_at"`
	Status              string    `db:"status"`
	Metadata            string    `db:"metadata"` // JSON
}

// AgentProject is the per-agent current-project pointer with optimistic version.
type AgentProject struct {
	AgentID     string    `db:"agent_id"`
	ProjectName *string   `db:"project_name"`
	Version     int64     `db:"version"`
	UpdatedAt   time.Time `db:"updated_at"`
	UpdatedBy   string    `db:"updated_by"`
	SessionID   string    `db:"session_id"`
}

// AgentEventType enumerates AgentEvent.EventType values.
type AgentEventType string

const (
	EventSessionStarted  AgentEventType = "session_started"
	EventSessionEnded    AgentEventType = "session_ended"
	EventProjectSet      AgentEventType = "project_set"
	EventProjectSwitched AgentEventType = "project_switched"
	EventConflictDetected AgentEventType = "conflict_detected"
)

// AgentEvent is an audit record for project-context changes.
type AgentEvent struct {
	ID          int64     `db:"id"`
	EventType   string    `db:"event_type"`
	AgentID     string    `db:"agent_id"`
	FromProject *string   `db:"from_project"`
	ToProject   *string   `db:"to_project"`
	VersionInfo string    `db:"version_info"` // JSON: {before, expected, after}
	Success     int       `db:"success"`      // 0/1; see IsSuccess
	Context     string    `db:"context"`      // JSON
	CreatedAt   time.Time `db:"created_at"`
}

// IsSuccess reports the boolean value of the stored 0/1 Success column.
func (e AgentEvent) IsSuccess() bool { return e.Success != 0 }

// DocumentChange records a successful document mutation.
type DocumentChange struct {
	ID        int64     `db:"id"`
	ProjectID int64     `db:"project_id"`
	DocName   string    `db:"doc_name"`
	Section   *string   `db:"section"`
	Action    string    `db:"action"`
	Agent     string    `db:"agent"`
	Metadata  string    `db:"metadata"` // JSON
	SHABefore string    `db:"sha_before"`
	SHAAfter  string    `db:"sha_after"`
	CreatedAt time.Time `db:"created_at"`
}

// OperationStatus enumerates ReminderHistoryEntry.OperationStatus.
type OperationStatus string

const (
	OpSuccess OperationStatus = "success"
	OpFailure OperationStatus = "failure"
	OpNeutral OperationStatus = "neutral"
)

// ReminderHistoryEntry records a reminder being shown to a session.
type ReminderHistoryEntry struct {
	ID               int64     `db:"id"`
	SessionID        string    `db:"session_id"`
	ReminderHash     string    `db:"reminder_hash"`
	ProjectRoot      string    `db:"project_root"`
	AgentID          string    `db:"agent_id"`
	ToolName         string    `db:"tool_name"`
	ReminderKey      string    `db:"reminder_key"`
	ShownAt          time.Time `db:"shown_at"`
	OperationStatus  string    `db:"operation_status"`
	ContextMetadata  string    `db:"context_metadata"` // JSON
}
