package toolrouter

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/execctx"
)

func TestSentinelDay_PrefersExecutionContext(t *testing.T) {
	ec := &execctx.ExecutionContext{SentinelDay: "2026-01-02"}
	now := time.Date(2026, 1, 3, 0, 1, 0, 0, time.UTC)

	if got := sentinelDay(ec, now); got != "2026-01-02" {
		t.Fatalf("expected the execution context's stamped day to win at a midnight boundary, got %q", got)
	}
}

func TestSentinelDay_FallsBackToNow(t *testing.T) {
	now := time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)
	if got := sentinelDay(nil, now); got != "2026-01-03" {
		t.Fatalf("expected fallback to now's date, got %q", got)
	}
	if got := sentinelDay(&execctx.ExecutionContext{}, now); got != "2026-01-03" {
		t.Fatalf("expected fallback when SentinelDay is empty, got %q", got)
	}
}

func TestNextSentinelID_Monotonic(t *testing.T) {
	dir := t.TempDir()
	day := "2026-08-01"

	first, err := nextSentinelID(dir, "BUG", day)
	if err != nil {
		t.Fatalf("nextSentinelID: %v", err)
	}
	second, err := nextSentinelID(dir, "BUG", day)
	if err != nil {
		t.Fatalf("nextSentinelID: %v", err)
	}

	if first != "BUG-2026-08-01-0001" {
		t.Fatalf("expected first ID BUG-2026-08-01-0001, got %q", first)
	}
	if second != "BUG-2026-08-01-0002" {
		t.Fatalf("expected second ID BUG-2026-08-01-0002, got %q", second)
	}
}

func TestNextSentinelID_IndependentPerPrefixAndDay(t *testing.T) {
	dir := t.TempDir()

	bug, err := nextSentinelID(dir, "BUG", "2026-08-01")
	if err != nil {
		t.Fatalf("nextSentinelID: %v", err)
	}
	sec, err := nextSentinelID(dir, "SEC", "2026-08-01")
	if err != nil {
		t.Fatalf("nextSentinelID: %v", err)
	}
	nextDay, err := nextSentinelID(dir, "BUG", "2026-08-02")
	if err != nil {
		t.Fatalf("nextSentinelID: %v", err)
	}

	if bug != "BUG-2026-08-01-0001" || sec != "SEC-2026-08-01-0001" || nextDay != "BUG-2026-08-02-0001" {
		t.Fatalf("expected independent counters per (prefix, day), got bug=%q sec=%q nextDay=%q", bug, sec, nextDay)
	}
}

func TestNextSentinelID_ConcurrentCallersNeverCollide(t *testing.T) {
	dir := t.TempDir()
	day := "2026-08-01"

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id, err := nextSentinelID(dir, "BUG", day)
			if err != nil {
				t.Errorf("nextSentinelID: %v", err)
				return
			}
			ids[idx] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if id == "" {
			continue
		}
		if seen[id] {
			t.Fatalf("duplicate sentinel ID assigned under concurrency: %q", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d unique IDs, got %d", n, len(seen))
	}
}

func TestAppendSentinelRecord_WritesBothStreams(t *testing.T) {
	dir := t.TempDir()
	jsonlPath := filepath.Join(dir, "sentinel-2026-08-01.jsonl")
	mdPath := filepath.Join(dir, "sentinel-2026-08-01.md")

	record := map[string]any{"type": "event", "message": "first"}
	if err := appendSentinelRecord(jsonlPath, mdPath, record, "- first"); err != nil {
		t.Fatalf("appendSentinelRecord: %v", err)
	}
	record2 := map[string]any{"type": "bug", "message": "second"}
	if err := appendSentinelRecord(jsonlPath, mdPath, record2, "- second"); err != nil {
		t.Fatalf("appendSentinelRecord: %v", err)
	}

	jsonlLines := readLines(t, jsonlPath)
	if len(jsonlLines) != 2 {
		t.Fatalf("expected 2 JSONL lines from mixed tool types in one file, got %d", len(jsonlLines))
	}

	mdLines := readLines(t, mdPath)
	if len(mdLines) != 2 || mdLines[0] != "- first" || mdLines[1] != "- second" {
		t.Fatalf("expected markdown mirror to preserve append order, got %v", mdLines)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
