package logging

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/scerr"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

var metadataKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Entry is a fully composed log entry, ready to be rendered as a raw line
// and persisted.
type Entry struct {
	Emoji     string
	Timestamp time.Time
	Agent     string
	Project   string
	ID        string // optional; empty segment is omitted from the raw line
	Message   string
	Metadata  map[string]string
}

// NormalizeMetadata trims values, replaces newlines with spaces and pipes
// with spaces, and validates every key matches [A-Za-z_][A-Za-z0-9_]*.
func NormalizeMetadata(metadata map[string]string) (map[string]string, error) {
	normalized := make(map[string]string, len(metadata))
	for k, v := range metadata {
		k = strings.ReplaceAll(k, "|", "_")
		if !metadataKeyPattern.MatchString(k) {
			return nil, scerr.Newf(scerr.KindParameterValidation, "invalid metadata key %q", k).
				WithField("key", k)
		}
		v = strings.ReplaceAll(v, "\n", " ")
		v = strings.ReplaceAll(v, "|", " ")
		normalized[k] = strings.TrimSpace(v)
	}
	return normalized, nil
}

// ValidateMessage rejects messages spanning multiple lines or containing
// pipe characters, both of which would corrupt the single-line grammar.
func ValidateMessage(message string) error {
	if message == "" {
		return scerr.New(scerr.KindParameterValidation, "message must not be empty")
	}
	if strings.Contains(message, "\n") {
		return scerr.New(scerr.KindParameterValidation, "message must not contain newlines")
	}
	if strings.Contains(message, "|") {
		return scerr.New(scerr.KindParameterValidation, "message must not contain pipe characters")
	}
	return nil
}

// renderMetadataSuffix renders metadata as sorted "k=v; k2=v2" pairs, or
// "" if there is none.
func renderMetadataSuffix(metadata map[string]string) string {
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
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, metadata[k]))
	}
	return strings.Join(pairs, "; ")
}

// ComposeRawLine renders e using the canonical grammar:
//
//	[<emoji>] [<YYYY-MM-DD HH:MM:SS UTC>] [Agent: <agent>] [Project: <project>] [ID: <entry_id>] <message> | k1=v1; k2=v2
//
// The ID segment and metadata suffix are omitted when absent.
func ComposeRawLine(e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Emoji)
	fmt.Fprintf(&b, "[%s] ", e.Timestamp.UTC().Format(timestampLayout))
	fmt.Fprintf(&b, "[Agent: %s] ", e.Agent)
	fmt.Fprintf(&b, "[Project: %s] ", e.Project)
	if e.ID != "" {
		fmt.Fprintf(&b, "[ID: %s] ", e.ID)
	}
	b.WriteString(e.Message)
	if suffix := renderMetadataSuffix(e.Metadata); suffix != "" {
		b.WriteString(" | ")
		b.WriteString(suffix)
	}
	return b.String()
}

var lineParsePattern = regexp.MustCompile(
	`^\[(?P<emoji>[^\]]*)\] \[(?P<ts>[^\]]+)\] \[Agent: (?P<agent>[^\]]*)\] \[Project: (?P<project>[^\]]*)\](?: \[ID: (?P<id>[^\]]*)\])? (?P<rest>.*)$`)

// ParseRawLine parses a line produced by ComposeRawLine back into an
// Entry. It is the inverse of ComposeRawLine and is used to verify the
// round-trip invariant (raw_line recomputed from fields equals the
// stored raw_line).
func ParseRawLine(line string) (Entry, error) {
	m := lineParsePattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, scerr.Newf(scerr.KindParameterValidation, "line does not match the canonical entry grammar")
	}
	groups := make(map[string]string)
	for i, name := range lineParsePattern.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}

	ts, err := time.Parse(timestampLayout, groups["ts"])
	if err != nil {
		return Entry{}, scerr.Wrap(scerr.KindParameterValidation, err, "parse timestamp")
	}

	rest := groups["rest"]
	message := rest
	metadata := map[string]string{}
	if idx := strings.LastIndex(rest, " | "); idx >= 0 {
		message = rest[:idx]
		metadata = parseMetadataSuffix(rest[idx+len(" | "):])
	}

	return Entry{
		Emoji:     groups["emoji"],
		Timestamp: ts,
		Agent:     groups["agent"],
		Project:   groups["project"],
		ID:        groups["id"],
		Message:   message,
		Metadata:  metadata,
	}, nil
}

func parseMetadataSuffix(suffix string) map[string]string {
	metadata := map[string]string{}
	for _, pair := range strings.Split(suffix, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		metadata[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return metadata
}
