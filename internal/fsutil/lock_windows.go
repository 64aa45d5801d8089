//go:build windows

package fsutil

import (
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// lockExclusive polls LockFileEx until it succeeds or budget elapses.
func lockExclusive(f *os.File, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	ol := new(windows.Overlapped)
	handle := windows.Handle(f.Fd())
	for {
		err := windows.LockFileEx(handle, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, ol)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(lockPollInterval)
	}
}

func unlock(f *os.File) error {
	ol := new(windows.Overlapped)
	handle := windows.Handle(f.Fd())
	return windows.UnlockFileEx(handle, 0, 1, 0, ol)
}
