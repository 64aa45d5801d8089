package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/fsutil"
	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// Sentinel-scoped tools (append_event, open_bug, open_security, link_fix)
// are not project-scoped: they record agent activity and incident cases
// that exist independently of any one project's progress log. They share
// a single per-day JSONL file and a mirrored markdown log under the
// repository's .scribe/sentinel directory, so the four tools compose into
// one readable timeline regardless of which one wrote a given line.

const sentinelSubdir = ".scribe/sentinel"

// sentinelDir sandboxes the repository-wide sentinel directory directly
// rather than through SafeFileOperation: sentinel writes are not
// project-scoped, so gating them on OpAppend's RequireProject rule would
// wrongly block them on a repository that requires a project for normal
// log appends.
func (r *Router) sentinelDir() (string, error) {
	sb, err := r.safety.GetSandbox(r.cfg.Roots())
	if err != nil {
		return "", err
	}
	dir := filepath.Join(r.cfg.RepoRoot, filepath.FromSlash(sentinelSubdir))
	vetted, err := sb.SandboxPath(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(vetted, 0o755); err != nil {
		return "", fmt.Errorf("create sentinel dir: %w", err)
	}
	return vetted, nil
}

func sentinelPaths(dir string, day string) (jsonlPath, mdPath string) {
	jsonlPath = filepath.Join(dir, fmt.Sprintf("sentinel-%s.jsonl", day))
	mdPath = filepath.Join(dir, fmt.Sprintf("sentinel-%s.md", day))
	return
}

// sentinelDay prefers the day stamped on the execution context (set when
// the call arrived in sentinel mode) so a call straddling midnight still
// lands in the file its ExecutionContext committed to.
func sentinelDay(ec *execctx.ExecutionContext, now time.Time) string {
	if ec != nil && ec.SentinelDay != "" {
		return ec.SentinelDay
	}
	return now.Format("2006-01-02")
}

// nextSentinelID assigns the next monotonic per-day, per-prefix ID (e.g.
// BUG-2026-08-01-0003) by incrementing a small lock-guarded counter file.
func nextSentinelID(dir, prefix, day string) (string, error) {
	counterPath := filepath.Join(dir, fmt.Sprintf(".%s-counter-%s", strings.ToLower(prefix), day))
	var id string
	err := fsutil.WithLock(counterPath, fsutil.DefaultLockRetryBudget, func(f *os.File) error {
		buf, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		n, _ := strconv.Atoi(strings.TrimSpace(string(buf)))
		n++
		id = fmt.Sprintf("%s-%s-%04d", prefix, day, n)
		if err := f.Truncate(0); err != nil {
			return err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err = f.WriteString(strconv.Itoa(n))
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func appendSentinelRecord(jsonlPath, mdPath string, record map[string]any, mdLine string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal sentinel record: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.LockedAppend(jsonlPath, data, fsutil.DefaultLockRetryBudget); err != nil {
		return err
	}
	return fsutil.LockedAppend(mdPath, []byte(mdLine+"\n"), fsutil.DefaultLockRetryBudget)
}

func handleAppendEvent(ctx context.Context, r *Router, ec *execctx.ExecutionContext, _ *storage.Project, params map[string]any) (*Result, error) {
	message, _ := params["message"].(string)
	if message == "" {
		return nil, scerr.New(scerr.KindParameterValidation, "message is required").WithField("field", "message")
	}
	eventType := stringOr(params["event_type"], "note")

	dir, err := r.sentinelDir()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	day := sentinelDay(ec, now)
	jsonlPath, mdPath := sentinelPaths(dir, day)
	agent := agentKeyFromExec(ec)

	record := map[string]any{
		"type":       "event",
		"event_type": eventType,
		"agent":      agent,
		"message":    message,
		"timestamp":  now.Format(time.RFC3339),
		"metadata":   stringMap(params["metadata"]),
	}
	mdLine := fmt.Sprintf("- [%s] **%s** (%s): %s", now.Format("15:04:05"), eventType, agent, message)
	if err := appendSentinelRecord(jsonlPath, mdPath, record, mdLine); err != nil {
		return nil, err
	}
	return &Result{OK: true, Data: map[string]any{"recorded": true, "timestamp": now, "event_type": eventType}}, nil
}

func handleOpenBug(ctx context.Context, r *Router, ec *execctx.ExecutionContext, _ *storage.Project, params map[string]any) (*Result, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return nil, scerr.New(scerr.KindParameterValidation, "title is required").WithField("field", "title")
	}

	dir, err := r.sentinelDir()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	day := sentinelDay(ec, now)
	id, err := nextSentinelID(dir, "BUG", day)
	if err != nil {
		return nil, err
	}
	jsonlPath, mdPath := sentinelPaths(dir, day)
	agent := agentKeyFromExec(ec)
	severity := stringOr(params["severity"], "medium")

	record := map[string]any{
		"type":          "bug",
		"id":            id,
		"agent":         agent,
		"title":         title,
		"description":   stringOr(params["description"], ""),
		"severity":      severity,
		"repro_steps":   stringOr(params["repro_steps"], ""),
		"affected_repo": stringOr(params["affected_repo"], r.cfg.RepoSlug),
		"timestamp":     now.Format(time.RFC3339),
	}
	mdLine := fmt.Sprintf("- [%s] **%s** `%s` (%s, %s): %s", now.Format("15:04:05"), id, title, severity, agent, stringOr(params["description"], ""))
	if err := appendSentinelRecord(jsonlPath, mdPath, record, mdLine); err != nil {
		return nil, err
	}
	return &Result{OK: true, Data: map[string]any{"bug_id": id, "severity": severity}}, nil
}

func handleOpenSecurity(ctx context.Context, r *Router, ec *execctx.ExecutionContext, _ *storage.Project, params map[string]any) (*Result, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return nil, scerr.New(scerr.KindParameterValidation, "title is required").WithField("field", "title")
	}

	dir, err := r.sentinelDir()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	day := sentinelDay(ec, now)
	id, err := nextSentinelID(dir, "SEC", day)
	if err != nil {
		return nil, err
	}
	jsonlPath, mdPath := sentinelPaths(dir, day)
	agent := agentKeyFromExec(ec)
	severity := stringOr(params["severity"], "high")

	record := map[string]any{
		"type":        "security",
		"id":          id,
		"agent":       agent,
		"title":       title,
		"description": stringOr(params["description"], ""),
		"severity":    severity,
		"cve":         stringOr(params["cve"], ""),
		"timestamp":   now.Format(time.RFC3339),
	}
	mdLine := fmt.Sprintf("- [%s] **%s** `%s` (%s, %s): %s", now.Format("15:04:05"), id, title, severity, agent, stringOr(params["description"], ""))
	if err := appendSentinelRecord(jsonlPath, mdPath, record, mdLine); err != nil {
		return nil, err
	}
	return &Result{OK: true, Data: map[string]any{"case_id": id, "severity": severity}}, nil
}

func handleLinkFix(ctx context.Context, r *Router, ec *execctx.ExecutionContext, _ *storage.Project, params map[string]any) (*Result, error) {
	caseID, _ := params["case_id"].(string)
	if caseID == "" {
		return nil, scerr.New(scerr.KindParameterValidation, "case_id is required").WithField("field", "case_id")
	}
	commitRef := stringOr(params["commit_ref"], "")
	message := stringOr(params["message"], "")

	dir, err := r.sentinelDir()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	day := sentinelDay(ec, now)
	jsonlPath, mdPath := sentinelPaths(dir, day)
	agent := agentKeyFromExec(ec)

	record := map[string]any{
		"type":       "link_fix",
		"case_id":    caseID,
		"agent":      agent,
		"commit_ref": commitRef,
		"message":    message,
		"timestamp":  now.Format(time.RFC3339),
	}
	mdLine := fmt.Sprintf("- [%s] fix linked for `%s` by %s: %s (%s)", now.Format("15:04:05"), caseID, agent, message, commitRef)
	if err := appendSentinelRecord(jsonlPath, mdPath, record, mdLine); err != nil {
		return nil, err
	}
	return &Result{OK: true, Data: map[string]any{"case_id": caseID, "linked": true}}, nil
}
