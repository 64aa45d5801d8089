//go:build !windows

package fsutil

import (
	"os"
	"syscall"
	"time"
)

// lockExclusive polls flock(LOCK_EX|LOCK_NB) until it succeeds or budget
// elapses.
func lockExclusive(f *os.File, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			return err
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(lockPollInterval)
	}
}

func unlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
