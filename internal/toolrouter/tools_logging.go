package toolrouter

import (
	"context"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/logging"
	"github.com/kdlbs/scribe-mcp/internal/sandbox"
	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

func handleAppendEntry(ctx context.Context, r *Router, ec *execctx.ExecutionContext, project *storage.Project, params map[string]any) (*Result, error) {
	if bulk, _ := params["bulk"].(bool); bulk {
		return appendBulk(ctx, r, ec, project, params)
	}

	req, err := buildAppendRequest(r, ec, project, params)
	if err != nil {
		return nil, err
	}

	res, err := r.logEngine.Append(ctx, req)
	if err != nil {
		return nil, err
	}
	return appendResultToResult(res), nil
}

func appendBulk(ctx context.Context, r *Router, ec *execctx.ExecutionContext, project *storage.Project, params map[string]any) (*Result, error) {
	checker, err := r.safety.GetPermissionChecker(r.cfg.Roots())
	if err != nil {
		return nil, err
	}
	if err := checker.ValidateOperation(sandbox.OpBulkEntries, sandbox.OpContext{ProjectName: project.Name}); err != nil {
		return nil, err
	}

	items, _ := params["items"].([]any)
	if len(items) == 0 {
		return nil, scerr.New(scerr.KindParameterValidation, "bulk append requires a non-empty items array").
			WithField("field", "items")
	}

	entries := make([]map[string]any, 0, len(items))
	stagger := time.Now().UTC()
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		req, err := buildAppendRequest(r, ec, project, item)
		if err != nil {
			return nil, err
		}
		if req.ExplicitTimestamp == nil {
			// Bulk-mode staggering: each item's compose-time timestamp is
			// advanced by a microsecond so concurrent acquires of the same
			// file lock still produce strictly increasing on-disk order.
			t := stagger.Add(time.Duration(i) * time.Microsecond)
			req.ExplicitTimestamp = &t
		}
		res, err := r.logEngine.Append(ctx, req)
		if err != nil {
			return nil, err
		}
		entries = append(entries, map[string]any{
			"entry_id":  res.Entry.ID,
			"duplicate": res.Duplicate,
		})
	}

	return &Result{OK: true, Data: map[string]any{"entries": entries, "count": len(entries)}}, nil
}

func buildAppendRequest(r *Router, ec *execctx.ExecutionContext, project *storage.Project, params map[string]any) (logging.AppendRequest, error) {
	message, _ := params["message"].(string)
	metadata := stringMap(params["metadata"])

	req := logging.AppendRequest{
		ProjectID:       project.ID,
		RepoSlug:        r.cfg.RepoSlug,
		ProjectSlug:     project.Name,
		ProgressLogPath: project.ProgressLogPath,
		DocsDir:         project.DocsDir,
		Agent:           stringOr(params["agent"], ec.AgentIdentity.DisplayName),
		Message:         message,
		Status:          stringOr(params["status"], ""),
		Priority:        stringOr(params["priority"], ""),
		Category:        stringOr(params["category"], ""),
		Tags:            stringOr(params["tags"], ""),
		Emoji:           stringOr(params["emoji"], ""),
		Confidence:      clampConfidence(params["confidence"]),
		Metadata:        metadata,
	}

	if logType, ok := params["log_type"].(string); ok && logType != "" {
		if stream, ok := logging.Streams[logging.StreamName(logType)]; ok && stream.Name != logging.StreamProgress {
			req.TeeStreams = []logging.StreamName{stream.Name}
		}
	}

	if ts, ok := params["timestamp"].(string); ok && ts != "" {
		if parsed, err := time.Parse("2006-01-02 15:04:05 MST", ts); err == nil {
			req.ExplicitTimestamp = &parsed
		} else if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			req.ExplicitTimestamp = &parsed
		}
	}

	return req, nil
}

func appendResultToResult(res *logging.AppendResult) *Result {
	data := map[string]any{
		"entry_id":  res.Entry.ID,
		"duplicate": res.Duplicate,
		"raw_line":  res.RawLine,
	}
	if len(res.TeeSkipped) > 0 {
		data["tee_skipped"] = res.TeeSkipped
	}
	if len(res.TeeSkippedMissing) > 0 {
		data["tee_skipped_missing"] = res.TeeSkippedMissing
	}
	r := &Result{OK: true, Data: data}
	if len(res.Warnings) > 0 {
		r.Fields = map[string]any{"warnings": res.Warnings}
	}
	return r
}

func handleReadRecent(ctx context.Context, r *Router, _ *execctx.ExecutionContext, project *storage.Project, params map[string]any) (*Result, error) {
	limit := intOr(params["limit"], 20)
	entries, err := r.store.ReadRecent(ctx, project.ID, limit)
	if err != nil {
		return nil, err
	}
	return &Result{OK: true, Data: map[string]any{"entries": entriesToMaps(entries)}}, nil
}

func handleQueryEntries(ctx context.Context, r *Router, _ *execctx.ExecutionContext, project *storage.Project, params map[string]any) (*Result, error) {
	priority, _ := params["priority"].(string)
	category, _ := params["category"].(string)
	limit := intOr(params["page_size"], 50)

	entries, err := r.store.QueryEntries(ctx, project.ID, priority, category, limit)
	if err != nil {
		return nil, err
	}

	minConfidence, hasMin := params["min_confidence"].(float64)
	if hasMin {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Confidence >= minConfidence {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if sortByPriority, _ := params["priority_sort"].(bool); sortByPriority {
		sortEntriesByPriority(entries)
	}

	return &Result{OK: true, Data: map[string]any{"entries": entriesToMaps(entries)}}, nil
}

func sortEntriesByPriority(entries []storage.LogEntry) {
	// Insertion sort: entry counts per query are small (page-sized), and
	// this keeps the comparator readable against the (priority ASC,
	// timestamp DESC) rule instead of reaching for sort.Slice twice.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && lessEntry(entries[j], entries[j-1]) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

func lessEntry(a, b storage.LogEntry) bool {
	pa, pb := logging.PrioritySortKey(logging.Priority(a.Priority)), logging.PrioritySortKey(logging.Priority(b.Priority))
	if pa != pb {
		return pa < pb
	}
	return a.Timestamp.After(b.Timestamp)
}

func entriesToMaps(entries []storage.LogEntry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":         e.ID,
			"timestamp":  e.Timestamp,
			"emoji":      e.Emoji,
			"agent":      e.Agent,
			"message":    e.Message,
			"raw_line":   e.RawLine,
			"priority":   e.Priority,
			"category":   e.Category,
			"tags":       e.Tags,
			"confidence": e.Confidence,
		})
	}
	return out
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		if sm, ok := v.(map[string]string); ok {
			return sm
		}
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// clampConfidence enforces the [0, 1] range: values below 0 or above 1
// clamp to 1.0, per the boundary rule surfaced on malformed scores.
func clampConfidence(v any) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	if f < 0 || f > 1 {
		return 1.0
	}
	return f
}
