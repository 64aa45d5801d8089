// Package logging implements the progress-log entry grammar, deterministic
// entry IDs, required-metadata enforcement, and the locked append
// pipeline that backs every Scribe tool writing to a repository's logs.
package logging

import "strings"

// Priority is one of the four retention/display tiers a log entry carries.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var validPriorities = map[Priority]bool{
	PriorityCritical: true, PriorityHigh: true, PriorityMedium: true, PriorityLow: true,
}

// Category is the semantic classification used for filtering.
type Category string

const (
	CategoryDecision       Category = "decision"
	CategoryInvestigation  Category = "investigation"
	CategoryBug            Category = "bug"
	CategoryImplementation Category = "implementation"
	CategoryTest           Category = "test"
	CategoryMilestone      Category = "milestone"
	CategoryConfig         Category = "config"
	CategorySecurity       Category = "security"
	CategoryPerformance    Category = "performance"
	CategoryDocumentation  Category = "documentation"
)

var validCategories = map[Category]bool{
	CategoryDecision: true, CategoryInvestigation: true, CategoryBug: true,
	CategoryImplementation: true, CategoryTest: true, CategoryMilestone: true,
	CategoryConfig: true, CategorySecurity: true, CategoryPerformance: true,
	CategoryDocumentation: true,
}

// ValidatePriority normalizes and validates a priority string,
// case-insensitively. An empty or unrecognized value returns ("", false)
// so the caller can fall back to inference or PriorityMedium.
func ValidatePriority(value string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(value)))
	if validPriorities[p] {
		return p, true
	}
	return "", false
}

// ValidateCategory normalizes and validates a category string.
func ValidateCategory(value string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	if validCategories[c] {
		return c, true
	}
	return "", false
}

// statusPriority maps a status keyword to its inferred priority.
var statusPriority = map[string]Priority{
	"error":   PriorityHigh,
	"bug":     PriorityHigh,
	"warn":    PriorityMedium,
	"success": PriorityMedium,
	"info":    PriorityLow,
	"plan":    PriorityMedium,
}

// InferPriorityFromStatus maps a status keyword to a priority, defaulting
// to PriorityMedium for anything unrecognized.
func InferPriorityFromStatus(status string) Priority {
	if p, ok := statusPriority[strings.ToLower(strings.TrimSpace(status))]; ok {
		return p
	}
	return PriorityMedium
}

// ResolvePriority applies the append pipeline's priority rule: an explicit
// priority wins if valid; otherwise the status keyword is used to infer
// one; an invalid explicit priority silently defaults to medium.
func ResolvePriority(explicit, status string) Priority {
	if explicit != "" {
		if p, ok := ValidatePriority(explicit); ok {
			return p
		}
		return PriorityMedium
	}
	if status != "" {
		return InferPriorityFromStatus(status)
	}
	return PriorityMedium
}

// statusEmoji maps a status keyword to its default emoji.
var statusEmoji = map[string]string{
	"info":    "ℹ️",
	"success": "✅",
	"warn":    "⚠️",
	"error":   "❌",
	"bug":     "\U0001f41e",
	"plan":    "\U0001f9ed",
}

// DefaultEmoji returns the default emoji for a status keyword, or "" if
// the keyword has no default.
func DefaultEmoji(status string) string {
	return statusEmoji[strings.ToLower(strings.TrimSpace(status))]
}

// PrioritySortKey orders priorities highest-first for display (critical=0
// ... low=3).
func PrioritySortKey(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}
