package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/fsutil"
	"github.com/kdlbs/scribe-mcp/internal/plugin"
	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// enrichmentWait bounds how long Append waits for post-append enrichment
// callbacks before returning; anything unfinished keeps running in the
// registry's background workers.
const enrichmentWait = 500 * time.Millisecond

// AppendRequest carries everything the append pipeline needs to compose,
// validate, and durably record one log entry.
type AppendRequest struct {
	ProjectID       int64
	RepoSlug        string
	ProjectSlug     string
	ProgressLogPath string
	DocsDir         string

	Agent    string
	Message  string
	Status   string // status keyword used for priority/emoji inference
	Priority string // explicit priority override, if any
	Category string
	Tags     string
	Emoji    string // explicit emoji override, if any

	Confidence float64
	Metadata   map[string]string

	// ExplicitTimestamp overrides now() when replaying a historical entry.
	ExplicitTimestamp *time.Time

	// TeeStreams additionally appends to these auxiliary streams (e.g.
	// StreamBugs for a bug report) when their required metadata is present.
	TeeStreams []StreamName
}

// AppendResult reports what the pipeline actually did.
type AppendResult struct {
	Entry             storage.LogEntry
	RawLine           string
	Duplicate         bool     // true if this was an idempotent replay of an existing entry
	TeeSkipped        []string // streams skipped for missing metadata, surfaced as reminders
	TeeSkippedMissing []string // metadata keys that caused a tee skip, deduped in first-seen order
	Warnings          []string // enrichment callback failures, never fatal
}

// Engine runs the eight-step append pipeline described by the logging
// core: validate, normalize, timestamp, derive id, compose, locked
// append, record, tee.
type Engine struct {
	store      *storage.Store
	registry   *plugin.Registry
	lockBudget time.Duration
}

// NewEngine builds an append Engine backed by store. registry may be nil
// if no enrichment callbacks are configured.
func NewEngine(store *storage.Store, registry *plugin.Registry) *Engine {
	return &Engine{store: store, registry: registry, lockBudget: fsutil.DefaultLockRetryBudget}
}

// Append runs the full pipeline for the progress stream and any requested
// tee streams.
func (e *Engine) Append(ctx context.Context, req AppendRequest) (*AppendResult, error) {
	if err := ValidateMessage(req.Message); err != nil {
		return nil, err
	}

	metadata, err := NormalizeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC()
	if req.ExplicitTimestamp != nil {
		timestamp = req.ExplicitTimestamp.UTC()
	}

	priority := ResolvePriority(req.Priority, req.Status)
	emoji := req.Emoji
	if emoji == "" {
		emoji = DefaultEmoji(req.Status)
	}

	entryID := DeriveEntryID(req.RepoSlug, req.ProjectSlug, timestamp, req.Agent, req.Message, metadata)

	entry := Entry{
		Emoji:     emoji,
		Timestamp: timestamp,
		Agent:     req.Agent,
		Project:   req.ProjectSlug,
		ID:        entryID,
		Message:   req.Message,
		Metadata:  metadata,
	}
	rawLine := ComposeRawLine(entry)
	sha := SHA256Hex(rawLine)

	if err := fsutil.LockedAppend(req.ProgressLogPath, []byte(rawLine+"\n"), e.lockBudget); err != nil {
		return nil, fmt.Errorf("append progress log: %w", err)
	}

	logEntry := storage.LogEntry{
		ID:         entryID,
		ProjectID:  req.ProjectID,
		Timestamp:  timestamp,
		Emoji:      emoji,
		Agent:      req.Agent,
		Message:    req.Message,
		Meta:       encodeMetadataJSON(metadata),
		RawLine:    rawLine,
		SHA256:     sha,
		Priority:   string(priority),
		Category:   req.Category,
		Tags:       req.Tags,
		Confidence: req.Confidence,
	}

	duplicate := false
	if err := e.store.InsertEntry(ctx, &logEntry); err != nil {
		if err == storage.ErrDuplicateEntry {
			duplicate = true
		} else {
			return nil, fmt.Errorf("insert entry: %w", err)
		}
	}
	if !duplicate {
		_ = e.store.TouchProjectEntry(ctx, req.ProjectID, timestamp)
	}

	result := &AppendResult{Entry: logEntry, RawLine: rawLine, Duplicate: duplicate}

	if e.registry != nil && !duplicate {
		result.Warnings = e.registry.Submit(plugin.Job{Kind: plugin.KindAppend, Entry: logEntry}, enrichmentWait)
	}

	seenMissing := make(map[string]bool)
	for _, stream := range req.TeeStreams {
		def, ok := Streams[stream]
		if !ok {
			continue
		}
		missing := MissingMetadata(def, req.Metadata)
		if len(missing) > 0 {
			result.TeeSkipped = append(result.TeeSkipped, string(stream))
			for _, key := range missing {
				if !seenMissing[key] {
					seenMissing[key] = true
					result.TeeSkippedMissing = append(result.TeeSkippedMissing, key)
				}
			}
			continue
		}
		path := ResolvePath(def.PathTemplate, req.ProjectSlug, "", req.ProgressLogPath, req.DocsDir)
		if err := fsutil.LockedAppend(path, []byte(rawLine+"\n"), e.lockBudget); err != nil {
			return nil, fmt.Errorf("tee to %s: %w", stream, err)
		}
	}

	return result, nil
}

// ValidateAgainstStream rejects an append whose metadata is missing keys
// the target stream requires, before any I/O happens.
func ValidateAgainstStream(stream Stream, metadata map[string]string) error {
	missing := MissingMetadata(stream, metadata)
	if len(missing) == 0 {
		return nil
	}
	return scerr.Newf(scerr.KindMetadataMissing, "missing required metadata for stream %q", stream.Name).
		WithField("missing_keys", missing)
}

func encodeMetadataJSON(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "{}"
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(b)
}
