package execctx

import "testing"

func baseExecCtx() *ExecutionContext {
	return &ExecutionContext{
		RepoRoot:  "/repo/one",
		Mode:      ModeProject,
		SessionID: "session-a",
		AgentIdentity: AgentIdentity{
			InstanceID: "instance-1",
		},
	}
}

func TestStableAgentHash_Deterministic(t *testing.T) {
	ec := baseExecCtx()
	first := StableAgentHash(ec, "")
	second := StableAgentHash(ec, "")
	if first != second {
		t.Fatalf("expected identical hash for identical context, got %q and %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected full unpadded hex sha256 digest (64 chars), got %d: %q", len(first), first)
	}
}

func TestStableAgentHash_DiffersAcrossRepos(t *testing.T) {
	a := baseExecCtx()
	b := baseExecCtx()
	b.RepoRoot = "/repo/two"

	if StableAgentHash(a, "") == StableAgentHash(b, "") {
		t.Fatal("two repositories served by the same process must not collide on the same agent hash")
	}
}

func TestStableAgentHash_ScopeKeyBySentinelDay(t *testing.T) {
	a := baseExecCtx()
	a.Mode = ModeSentinel
	a.SentinelDay = "2026-08-01"
	a.SessionID = "session-irrelevant-in-sentinel-mode"

	b := baseExecCtx()
	b.Mode = ModeSentinel
	b.SentinelDay = "2026-08-02"
	b.SessionID = a.SessionID

	if StableAgentHash(a, "") == StableAgentHash(b, "") {
		t.Fatal("sentinel mode must scope by sentinel day, not session id")
	}
}

func TestStableAgentHash_AgentKeyFallbackOrder(t *testing.T) {
	ec := baseExecCtx()
	ec.AgentIdentity = AgentIdentity{DisplayName: "display-only"}
	withDisplay := StableAgentHash(ec, "")

	ec.AgentIdentity.InstanceID = "instance-wins"
	withInstance := StableAgentHash(ec, "")

	if withDisplay == withInstance {
		t.Fatal("instance_id must take priority over display_name when both are present")
	}

	ec2 := baseExecCtx()
	ec2.AgentIdentity = AgentIdentity{}
	withExplicitArg := StableAgentHash(ec2, "explicit-agent")
	withDefault := StableAgentHash(ec2, "")
	if withExplicitArg == withDefault {
		t.Fatal("an explicit agent argument must change the hash relative to the \"default\" fallback")
	}
}
