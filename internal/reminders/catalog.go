package reminders

import (
	"fmt"
	"sort"
	"strings"
)

// Settings are the tunable thresholds the built-in catalog closes over.
// cmd/scribe starts from DefaultSettings and overrides SessionAware,
// MaxPerResponse and TeachingCap from internal/common/config.ReminderConfig;
// the timing thresholds keep their default values.
type Settings struct {
	LogWarningMinutes  int
	LogUrgentMinutes   int
	DocStaleDays       int
	MinDocLength       int
	WarmupMinutes      int
	IdleResetMinutes   int
	SuppressPhaseTools map[string]bool
	SessionAware       bool
	MaxPerResponse     int
	TeachingCap        int
}

// DefaultSettings mirrors the legacy dataclass defaults: info/warning/urgent
// severities of 3/6/9 translate here to Definition.Score, and the minute
// thresholds below are the warmup/idle defaults.
func DefaultSettings() Settings {
	return Settings{
		LogWarningMinutes: 30,
		LogUrgentMinutes:  120,
		DocStaleDays:      7,
		MinDocLength:      400,
		WarmupMinutes:     5,
		IdleResetMinutes:  60,
		SuppressPhaseTools: map[string]bool{
			"append_entry":           true,
			"generate_doc_templates": true,
		},
		SessionAware:   true,
		MaxPerResponse: 5,
		TeachingCap:    3,
	}
}

// Catalog builds the built-in reminder definitions parameterized by s.
func Catalog(s Settings) []Definition {
	return []Definition{
		{
			Key:         "logging.stale_log_warning",
			Level:       LevelWarning,
			Category:    CategoryLogging,
			Score:       6,
			CooldownMin: 15,
			Template:    "It's been {{.minutes}} minutes since the last log entry for {{.project}} - consider logging progress.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				if ctx.MinutesSinceLog == nil {
					return nil, false
				}
				m := *ctx.MinutesSinceLog
				if m <= float64(s.LogWarningMinutes) || m > float64(s.LogUrgentMinutes) {
					return nil, false
				}
				return map[string]string{"minutes": fmt.Sprintf("%.0f", m), "project": ctx.ProjectName}, true
			},
		},
		{
			Key:         "logging.stale_log_urgent",
			Level:       LevelUrgent,
			Category:    CategoryLogging,
			Score:       9,
			CooldownMin: 15,
			Template:    "No log entry for {{.project}} in {{.minutes}} minutes - this is well past the expected cadence.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				if ctx.MinutesSinceLog == nil || *ctx.MinutesSinceLog <= float64(s.LogUrgentMinutes) {
					return nil, false
				}
				return map[string]string{
					"minutes": fmt.Sprintf("%.0f", *ctx.MinutesSinceLog),
					"project": ctx.ProjectName,
				}, true
			},
		},
		{
			Key:         "docs.missing",
			Level:       LevelWarning,
			Category:    CategoryDocs,
			Score:       5,
			CooldownMin: 30,
			Template:    "Missing documents for {{.project}}: {{.docs}}.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				missing := docsWithStatus(ctx.DocsStatus, DocMissing)
				if len(missing) == 0 {
					return nil, false
				}
				return map[string]string{"project": ctx.ProjectName, "docs": joinNames(missing)}, true
			},
		},
		{
			Key:         "docs.incomplete",
			Level:       LevelInfo,
			Category:    CategoryDocs,
			Score:       3,
			CooldownMin: 30,
			Template:    "Documents still incomplete for {{.project}}: {{.docs}}.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				incomplete := docsWithStatus(ctx.DocsStatus, DocIncomplete)
				if len(incomplete) == 0 {
					return nil, false
				}
				return map[string]string{"project": ctx.ProjectName, "docs": joinNames(incomplete)}, true
			},
		},
		{
			Key:         "logging.missing_tee_metadata",
			Level:       LevelWarning,
			Category:    CategoryLogging,
			Score:       7,
			CooldownMin: 0,
			Template:    "Missing metadata for log entry: {{.keys}}.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				if len(ctx.MissingLogMetadata) == 0 {
					return nil, false
				}
				return map[string]string{"keys": strings.Join(ctx.MissingLogMetadata, ", ")}, true
			},
		},
		{
			Key:         "phase.current",
			Level:       LevelInfo,
			Category:    CategoryPhase,
			Score:       2,
			CooldownMin: 20,
			Template:    "Current phase: {{.phase}}.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				if ctx.CurrentPhase == "" || s.SuppressPhaseTools[ctx.ToolName] {
					return nil, false
				}
				return map[string]string{"phase": ctx.CurrentPhase}, true
			},
		},
		{
			Key:         "session.teaching_tip",
			Level:       LevelInfo,
			Category:    CategoryTeaching,
			Score:       1,
			CooldownMin: 0,
			Template:    "New session on {{.project}}: log progress as you go and keep the checklist current.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				if ctx.SessionAgeMinutes == nil || *ctx.SessionAgeMinutes > float64(s.WarmupMinutes) {
					return nil, false
				}
				return map[string]string{"project": ctx.ProjectName}, true
			},
		},
		{
			Key:         "session.idle_warning",
			Level:       LevelWarning,
			Category:    CategorySession,
			Score:       4,
			CooldownMin: 30,
			Template:    "This session has been active for {{.minutes}} minutes without a reset - check whether it is still the right agent identity.",
			Applicable: func(ctx Context) (map[string]string, bool) {
				if ctx.SessionAgeMinutes == nil || *ctx.SessionAgeMinutes <= float64(s.IdleResetMinutes) {
					return nil, false
				}
				return map[string]string{"minutes": fmt.Sprintf("%.0f", *ctx.SessionAgeMinutes)}, true
			},
		},
	}
}

func docsWithStatus(status map[string]DocStatus, want DocStatus) []string {
	var names []string
	for name, st := range status {
		if st == want {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
