// Package execctx derives and carries the per-tool-call execution context:
// stable session identity, agent identity, and the scope (repo, mode) a
// tool invocation runs against.
package execctx

import (
	"context"
	"time"
)

// Mode is the scope an ExecutionContext operates in.
type Mode string

const (
	ModeProject  Mode = "project"
	ModeSentinel Mode = "sentinel"
)

// AgentIdentity identifies the calling agent for partitioning and audit.
type AgentIdentity struct {
	Kind        string
	Model       string
	InstanceID  string
	SubID       string
	DisplayName string
}

// ExecutionContext is the immutable bundle installed for the duration of a
// single tool call. Tools read it via FromContext rather than receiving it
// as an explicit parameter through every call layer; helpers that cross
// module boundaries take it explicitly so they stay testable without a
// global.
type ExecutionContext struct {
	RepoRoot            string
	Mode                Mode
	SessionID           string
	ExecutionID         string
	AgentIdentity       AgentIdentity
	Intent              string
	Timestamp           time.Time
	AffectedDevProjects []string
	SentinelDay         string // YYYY-MM-DD, set only in sentinel mode
	TransportSessionID  string
	ParentExecutionID   string
}

type contextKey struct{}

// WithExecutionContext installs ec into ctx for the duration of a call.
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ec)
}

// FromContext recovers the ExecutionContext installed by WithExecutionContext.
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	ec, ok := ctx.Value(contextKey{}).(*ExecutionContext)
	return ec, ok
}

// MustFromContext panics if no ExecutionContext is installed. Tool bodies
// run exclusively inside the router's installed scope, so a missing
// context there is a programming error, not a user-facing one.
func MustFromContext(ctx context.Context) *ExecutionContext {
	ec, ok := FromContext(ctx)
	if !ok {
		panic("execctx: no ExecutionContext installed on context")
	}
	return ec
}
