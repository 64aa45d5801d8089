package sandbox

import (
	"sync"

	"github.com/kdlbs/scribe-mcp/internal/scerr"
)

// RepoRoots is the set of directories a repository wants sandboxed, beyond
// the repo root itself. Construction happens in the repo package, which
// knows how to resolve these from RepoConfig; sandbox stays ignorant of
// config file shapes.
type RepoRoots struct {
	RepoRoot     string
	DocsDir      string
	PluginsDir   string
	TemplatesDir string
	ScribeDir    string
	DBDir        string
	Permissions  Permissions
}

// Safety coordinates PathSandbox/PermissionChecker instances across every
// repository this process is currently serving, so each tenant's checks
// are isolated and built exactly once.
type Safety struct {
	mu       sync.Mutex
	sandbox  map[string]*PathSandbox
	checkers map[string]*PermissionChecker
}

// NewSafety builds an empty multi-tenant coordinator.
func NewSafety() *Safety {
	return &Safety{
		sandbox:  make(map[string]*PathSandbox),
		checkers: make(map[string]*PermissionChecker),
	}
}

func (s *Safety) repoKey(repoRoot string) (string, error) {
	resolved, err := realpath(repoRoot)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// GetSandbox returns the cached sandbox for repoRoot, building it from
// roots on first use.
func (s *Safety) GetSandbox(roots RepoRoots) (*PathSandbox, error) {
	key, err := s.repoKey(roots.RepoRoot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sb, ok := s.sandbox[key]; ok {
		return sb, nil
	}

	sb, err := NewPathSandbox(roots.RepoRoot, roots.DocsDir, roots.PluginsDir, roots.TemplatesDir, roots.ScribeDir, roots.DBDir)
	if err != nil {
		return nil, err
	}
	s.sandbox[key] = sb
	s.checkers[key] = NewPermissionChecker(roots.Permissions)
	return sb, nil
}

// GetPermissionChecker returns the cached checker for repoRoot, building
// the full RepoRoots state (and its sandbox) if not already cached.
func (s *Safety) GetPermissionChecker(roots RepoRoots) (*PermissionChecker, error) {
	if _, err := s.GetSandbox(roots); err != nil {
		return nil, err
	}
	key, err := s.repoKey(roots.RepoRoot)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkers[key], nil
}

// SafeFileOperation validates permission for operation, then sandboxes
// filePath, returning the vetted path.
func (s *Safety) SafeFileOperation(roots RepoRoots, filePath string, operation Operation, opCtx OpContext) (string, error) {
	sb, err := s.GetSandbox(roots)
	if err != nil {
		return "", err
	}
	checker, err := s.GetPermissionChecker(roots)
	if err != nil {
		return "", err
	}
	if err := checker.ValidateOperation(operation, opCtx); err != nil {
		return "", err
	}
	return sb.SandboxPath(filePath)
}

// ValidateProjectAccess checks that a project's docs directory is within
// the repository's sandbox and that operation is permitted for it.
func (s *Safety) ValidateProjectAccess(roots RepoRoots, projectDocsDir, projectName string, operation Operation) error {
	sb, err := s.GetSandbox(roots)
	if err != nil {
		return err
	}
	checker, err := s.GetPermissionChecker(roots)
	if err != nil {
		return err
	}
	if !sb.IsAllowed(projectDocsDir) {
		return scerr.Newf(scerr.KindSecurityViolation, "project directory %q is not within repository boundaries", projectDocsDir)
	}
	return checker.ValidateOperation(operation, OpContext{ProjectName: projectName})
}

// CleanupRepository drops the cached sandbox/checker for a repository,
// e.g. when it is removed from the process's active tenant set.
func (s *Safety) CleanupRepository(repoRoot string) {
	key, err := s.repoKey(repoRoot)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sandbox, key)
	delete(s.checkers, key)
}
