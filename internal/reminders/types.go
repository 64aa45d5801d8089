// Package reminders implements the cooldown-aware, session-aware,
// priority-weighted reminder selector attached to every tool response.
package reminders

import "time"

// Level is a reminder's urgency tier.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelUrgent  Level = "urgent"
)

// levelPriority orders Level for selection: urgent > warning > info.
var levelPriority = map[Level]int{LevelUrgent: 3, LevelWarning: 2, LevelInfo: 1}

// Category groups reminders for cap and sort-weight purposes.
type Category string

const (
	CategoryLogging  Category = "logging"
	CategoryDocs     Category = "docs"
	CategoryPhase    Category = "phase"
	CategorySession  Category = "session"
	CategoryTeaching Category = "teaching"
)

// categoryWeight breaks ties within a level after score, favoring
// reminders that affect the durable record over purely informational ones.
var categoryWeight = map[Category]int{
	CategoryLogging:  4,
	CategoryDocs:     3,
	CategoryPhase:    2,
	CategorySession:  1,
	CategoryTeaching: 0,
}

// OperationStatus mirrors storage.OperationStatus for the reminder context,
// kept as a distinct type so this package has no storage import cycle risk.
type OperationStatus string

const (
	OpSuccess OperationStatus = "success"
	OpFailure OperationStatus = "failure"
	OpNeutral OperationStatus = "neutral"
)

// DocStatus is one entry of ReminderContext.DocsStatus.
type DocStatus string

const (
	DocMissing    DocStatus = "missing"
	DocIncomplete DocStatus = "incomplete"
	DocComplete   DocStatus = "complete"
)

// Context is the assembled state a reminder evaluation runs against.
type Context struct {
	ToolName         string
	ProjectName      string
	ProjectRoot      string
	AgentID          string
	SessionID        string
	TotalEntries     int
	MinutesSinceLog  *float64
	LastLogTime      *time.Time
	DocsStatus       map[string]DocStatus
	DocsChanged      []string
	CurrentPhase     string
	SessionAgeMinutes *float64
	OperationStatus  OperationStatus
	MissingLogMetadata []string
	Variables        map[string]string
}

// Definition is a reminder's static configuration: key, level, rendering
// template, category, base score, and per-instance cooldown.
type Definition struct {
	Key            string
	Level          Level
	Template       string
	Category       Category
	Score          int
	CooldownMin    int
	// Applicable reports whether this reminder is a candidate for ctx,
	// and returns the variables its template needs if so.
	Applicable func(ctx Context) (vars map[string]string, ok bool)
}

// Shown is a reminder selected for inclusion in a tool response.
type Shown struct {
	Key      string
	Level    Level
	Category Category
	Message  string
}
