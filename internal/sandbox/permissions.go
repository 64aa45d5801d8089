package sandbox

import "github.com/kdlbs/scribe-mcp/internal/scerr"

// Permissions are the repository-level toggles a RepoConfig carries.
type Permissions struct {
	AllowRotate       bool
	AllowGenerateDocs bool
	AllowBulkEntries  bool
	RequireProject    bool
}

// DefaultPermissions allows every capability; a project is not required
// unless the repository opts in.
func DefaultPermissions() Permissions {
	return Permissions{AllowRotate: true, AllowGenerateDocs: true, AllowBulkEntries: true}
}

// Operation names a sandboxed capability. CheckPermission and
// ValidateOperation key off these exact strings.
type Operation string

const (
	OpRotate       Operation = "rotate"
	OpGenerateDocs Operation = "generate_docs"
	OpBulkEntries  Operation = "bulk_entries"
	OpAppend       Operation = "append"
	OpRead         Operation = "read"
)

// PermissionChecker enforces a repository's Permissions.
type PermissionChecker struct {
	perms Permissions
}

// NewPermissionChecker builds a checker bound to perms.
func NewPermissionChecker(perms Permissions) *PermissionChecker {
	return &PermissionChecker{perms: perms}
}

// OpContext carries the extra facts some permission checks need.
type OpContext struct {
	ProjectName string
}

// CheckPermission reports whether operation is allowed under ctx.
func (c *PermissionChecker) CheckPermission(operation Operation, ctx OpContext) bool {
	switch operation {
	case OpRotate:
		if !c.perms.AllowRotate {
			return false
		}
	case OpGenerateDocs:
		if !c.perms.AllowGenerateDocs {
			return false
		}
	case OpBulkEntries:
		if !c.perms.AllowBulkEntries {
			return false
		}
	}

	if (operation == OpAppend || operation == OpRead) && c.perms.RequireProject {
		if ctx.ProjectName == "" {
			return false
		}
	}

	return true
}

// ValidateOperation returns a permission_denied error if operation is not
// allowed under ctx.
func (c *PermissionChecker) ValidateOperation(operation Operation, ctx OpContext) error {
	if !c.CheckPermission(operation, ctx) {
		return scerr.Newf(scerr.KindPermissionDenied, "operation %q is not allowed for this repository", operation).
			WithField("operation", string(operation))
	}
	return nil
}
