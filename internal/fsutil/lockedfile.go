// Package fsutil implements the locked-append, atomic-rotation, and
// atomic-state-write primitives every mutating Scribe operation funnels
// through before touching a repository's files.
package fsutil

import (
	"fmt"
	"os"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/scerr"
)

// DefaultLockRetryBudget bounds how long LockedAppend waits for an
// advisory lock before giving up.
const DefaultLockRetryBudget = 250 * time.Millisecond

const lockPollInterval = 10 * time.Millisecond

// FileLockError surfaces to the caller when a lock could not be acquired
// within the retry budget, so tools can decide whether to retry at a
// higher level.
type FileLockError struct {
	Path   string
	Budget time.Duration
}

func (e *FileLockError) Error() string {
	return fmt.Sprintf("fsutil: could not acquire lock on %s within %s", e.Path, e.Budget)
}

// LockedAppend opens path for append (creating it if necessary), acquires
// an advisory exclusive lock with a bounded retry budget, writes data,
// flushes, fsyncs, then releases the lock.
func LockedAppend(path string, data []byte, budget time.Duration) error {
	if budget <= 0 {
		budget = DefaultLockRetryBudget
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := lockExclusive(f, budget); err != nil {
		return scerr.Wrap(scerr.KindLockTimeout, &FileLockError{Path: path, Budget: budget}, "acquire file lock")
	}
	defer unlock(f)

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync %s: %w", path, err)
	}
	return nil
}

// WithLock runs fn while holding an advisory exclusive lock on path,
// creating it if necessary. Used by operations that need more than a
// single append under the lock (e.g. rotation).
func WithLock(path string, budget time.Duration, fn func(f *os.File) error) error {
	if budget <= 0 {
		budget = DefaultLockRetryBudget
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := lockExclusive(f, budget); err != nil {
		return scerr.Wrap(scerr.KindLockTimeout, &FileLockError{Path: path, Budget: budget}, "acquire file lock")
	}
	defer unlock(f)

	return fn(f)
}
