package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// normalizedTimestamp renders t in the same UTC layout used on the wire,
// so the same instant always hashes to the same string regardless of the
// caller's local timezone.
func normalizedTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// DeriveEntryID computes the deterministic 32-hex-character entry id:
// the first 32 hex characters of SHA-256 over
// "repo_slug|project_slug|normalized_timestamp|agent|message|k1=v1;k2=v2"
// (metadata rendered as sorted "k=v" pairs). Replaying the same logical
// append - same repo, project, timestamp, agent, message, and metadata -
// always yields the same ID, which the storage layer uses to make the
// append idempotent.
func DeriveEntryID(repoSlug, projectSlug string, timestamp time.Time, agent, message string, metadata map[string]string) string {
	agentOrDefault := agent
	if agentOrDefault == "" {
		agentOrDefault = "default"
	}

	parts := []string{
		repoSlug,
		projectSlug,
		normalizedTimestamp(timestamp),
		agentOrDefault,
		message,
		sortedMetadataString(metadata),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:32]
}

func sortedMetadataString(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+metadata[k])
	}
	return strings.Join(pairs, ";")
}

// SHA256Hex returns the SHA-256 hex digest of data, used to stamp
// raw_line.sha256 on a composed entry.
func SHA256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
