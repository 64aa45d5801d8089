package reminders

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash computes the cooldown key for a (project_root, agent_id, tool_name,
// reminder_key) tuple. When sessionAware is true the session_id is folded
// in as well, scoping cooldowns per-session rather than per-agent.
func Hash(projectRoot, agentID, toolName, reminderKey, sessionID string, sessionAware bool) string {
	parts := fmt.Sprintf("%s|%s|%s|%s", projectRoot, agentID, toolName, reminderKey)
	if sessionAware {
		parts = fmt.Sprintf("%s|%s", parts, sessionID)
	}
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])
}
