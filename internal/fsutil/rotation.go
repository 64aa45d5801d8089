package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// RotationResult describes a completed atomic rotation.
type RotationResult struct {
	ArchivePath string
	ArchiveHash string
	PriorHash   string
}

// RotateLog copies the log at path into a timestamped archive under lock,
// truncates the original, and writes a header into the now-empty file
// referencing the archive path and a hash-chain value linking it to the
// project's prior archive. Rotation archives form an append-only hash
// chain per project: each archive's header names the hash of the archive
// before it.
func RotateLog(path string, priorArchiveHash string, now time.Time) (*RotationResult, error) {
	var result *RotationResult
	err := WithLock(path, DefaultLockRetryBudget, func(f *os.File) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		contents, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		archivePath := fmt.Sprintf("%s.%s.archive", path, now.UTC().Format("20060102T150405Z"))
		if err := os.WriteFile(archivePath, contents, 0o644); err != nil {
			return fmt.Errorf("write archive %s: %w", archivePath, err)
		}

		sum := sha256.Sum256(contents)
		archiveHash := hex.EncodeToString(sum[:])

		header := fmt.Sprintf("# rotated %s -> archive=%s prior_hash=%s archive_hash=%s\n",
			now.UTC().Format(time.RFC3339), filepath.Base(archivePath), priorArchiveHash, archiveHash)

		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("truncate %s: %w", path, err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := f.WriteString(header); err != nil {
			return fmt.Errorf("write header %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("fsync %s: %w", path, err)
		}

		result = &RotationResult{ArchivePath: archivePath, ArchiveHash: archiveHash, PriorHash: priorArchiveHash}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
