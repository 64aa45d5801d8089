// Package sandbox enforces that filesystem operations stay within a
// repository's declared boundaries and respect its configured
// permissions, so one tenant's agents cannot read or write another
// tenant's files even when both are served from the same process.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kdlbs/scribe-mcp/internal/scerr"
)

// PathSandbox restricts filesystem access to a fixed set of allowed roots
// under one repository.
type PathSandbox struct {
	repoRoot     string
	allowedPaths []string
	deniedPaths  []string
}

// NewPathSandbox builds a sandbox for repoRoot, always allowing the repo
// root itself plus any extraRoots (docs dir, plugins dir, custom template
// dir, .scribe config dir, database directory) that the caller resolves
// up front.
func NewPathSandbox(repoRoot string, extraRoots ...string) (*PathSandbox, error) {
	resolvedRoot, err := realpath(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	s := &PathSandbox{repoRoot: resolvedRoot, allowedPaths: []string{resolvedRoot}}
	for _, r := range extraRoots {
		if r == "" {
			continue
		}
		resolved, err := realpath(r)
		if err != nil {
			continue // realpath resolves roots that don't exist yet; one that fails to resolve is skipped
		}
		s.allowedPaths = append(s.allowedPaths, resolved)
	}
	return s, nil
}

// Deny adds a path that is rejected even if it falls under an allowed root.
func (s *PathSandbox) Deny(path string) {
	resolved, err := realpath(path)
	if err != nil {
		return
	}
	s.deniedPaths = append(s.deniedPaths, resolved)
}

// IsAllowed runs the full check chain: null-byte rejection, URL-encoded
// traversal rejection, symlink rejection, then realpath containment
// against the allowed/denied root sets.
func (s *PathSandbox) IsAllowed(path string) bool {
	if strings.ContainsRune(path, 0) {
		return false
	}
	lower := strings.ToLower(path)
	if strings.Contains(lower, "..%2f") || strings.Contains(lower, "..%5c") {
		return false
	}

	// Block all symlinks: a validated target can be swapped for a
	// malicious one between check and use if the link itself is followed.
	// This also catches a symlinked ancestor directory, not just a
	// symlinked leaf: a path can look legitimate yet only be reachable by
	// following a symlink somewhere above it.
	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return false
		}
	}
	if s.hasSymlinkAncestor(path) {
		return false
	}

	resolved, err := realpath(path)
	if err != nil {
		return false
	}

	for _, denied := range s.deniedPaths {
		if isOrUnder(resolved, denied) {
			return false
		}
	}
	for _, allowed := range s.allowedPaths {
		if isOrUnder(resolved, allowed) {
			return true
		}
	}
	return false
}

// SandboxPath returns path unchanged if allowed, otherwise a
// security_violation error.
func (s *PathSandbox) SandboxPath(path string) (string, error) {
	if !s.IsAllowed(path) {
		return "", scerr.Newf(scerr.KindSecurityViolation, "path %q is outside allowed repository boundaries", path).
			WithField("path", path)
	}
	return path, nil
}

// SafeRelativePath returns path relative to the repo root, failing if the
// resolved path is not actually under it.
func (s *PathSandbox) SafeRelativePath(path string) (string, error) {
	resolved, err := realpath(path)
	if err != nil {
		return "", scerr.Wrap(scerr.KindSecurityViolation, err, "resolve path")
	}
	if !isOrUnder(resolved, s.repoRoot) {
		return "", scerr.Newf(scerr.KindSecurityViolation, "path %q is outside repository root %q", path, s.repoRoot)
	}
	rel, err := filepath.Rel(s.repoRoot, resolved)
	if err != nil {
		return "", err
	}
	return rel, nil
}

// hasSymlinkAncestor walks path's directories upward to the sandboxed repo
// root, reporting whether any of them is itself a symlink. IsAllowed's leaf
// check alone misses a path that looks fine but is only reachable through a
// symlinked parent directory.
func (s *PathSandbox) hasSymlinkAncestor(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dir := filepath.Dir(abs)
	for {
		if info, err := os.Lstat(dir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return true
		}
		if dir == s.repoRoot {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// realpath resolves symlinks and returns an absolute, cleaned path. It
// does not require the path to exist: missing components are resolved as
// far as possible via the nearest existing ancestor, matching the
// behavior callers need when sandboxing a file about to be created.
func realpath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	// Walk up to the nearest existing ancestor, resolve that, then
	// reattach the remaining (not-yet-created) path components.
	dir, base := filepath.Split(abs)
	cleanDir := filepath.Clean(dir)
	if cleanDir == abs {
		// Reached the filesystem root without finding an existing
		// ancestor; nothing further to resolve.
		return abs, nil
	}
	parentResolved, perr := realpath(cleanDir)
	if perr != nil {
		return "", perr
	}
	return filepath.Join(parentResolved, base), nil
}

func isOrUnder(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
