package execctx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// StableAgentHash derives the partition key used to isolate concurrent
// agents from one another: SHA-256 of
// "{canonical_repo_root}:{mode}:{scope_key}:{agent_key}", hex-encoded in
// full (no truncation) to keep collision probability negligible across
// parallel agents.
//
// scope_key is SentinelDay in sentinel mode, SessionID in project mode.
// agent_key falls back through SubID, InstanceID, DisplayName, an explicit
// override, and finally the literal "default".
func StableAgentHash(ec *ExecutionContext, explicitAgentArg string) string {
	scopeKey := ec.SessionID
	if ec.Mode == ModeSentinel {
		scopeKey = ec.SentinelDay
	}

	agentKey := firstNonEmpty(ec.AgentIdentity.SubID, ec.AgentIdentity.InstanceID,
		ec.AgentIdentity.DisplayName, explicitAgentArg, "default")

	input := fmt.Sprintf("%s:%s:%s:%s", ec.RepoRoot, ec.Mode, scopeKey, agentKey)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
