package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTempCleanupThreshold is how old a leftover temp file must be
// before AtomicWriteFile's cleanup pass removes it.
const DefaultTempCleanupThreshold = 5 * time.Minute

// AtomicWriteFile writes data to a versioned sibling temp file, flushes
// and fsyncs it, renames it over target, and sweeps any stale temp files
// left behind by a prior crash.
func AtomicWriteFile(target string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", target, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, target, err)
	}

	cleanupStaleTemp(dir, filepath.Base(target), DefaultTempCleanupThreshold)
	return nil
}

// cleanupStaleTemp removes leftover "<base>.tmp-*" files older than
// threshold, left behind by a process that crashed between CreateTemp and
// Rename.
func cleanupStaleTemp(dir, base string, threshold time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	prefix := base + ".tmp-"
	cutoff := time.Now().Add(-threshold)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, entry.Name()))
	}
}
