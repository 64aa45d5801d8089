package logging

import "strings"

// StreamName identifies one of the four standard log streams.
type StreamName string

const (
	StreamProgress    StreamName = "progress"
	StreamDocUpdates  StreamName = "doc_updates"
	StreamSecurity    StreamName = "security"
	StreamBugs        StreamName = "bugs"
)

// Stream describes a log stream's path template and required metadata
// keys. Before an append to a stream, the logging core verifies every
// required key is present; a missing key rejects the append rather than
// writing a partial record.
type Stream struct {
	Name            StreamName
	PathTemplate    string
	RequiredMetadata []string
}

// Streams lists the four standard streams, keyed by name.
var Streams = map[StreamName]Stream{
	StreamProgress: {
		Name:             StreamProgress,
		PathTemplate:     "{progress_log}",
		RequiredMetadata: nil,
	},
	StreamDocUpdates: {
		Name:             StreamDocUpdates,
		PathTemplate:     "{docs_dir}/DOC_LOG.md",
		RequiredMetadata: []string{"doc", "section", "action"},
	},
	StreamSecurity: {
		Name:             StreamSecurity,
		PathTemplate:     "{docs_dir}/SECURITY_LOG.md",
		RequiredMetadata: []string{"severity", "area", "impact"},
	},
	StreamBugs: {
		Name:             StreamBugs,
		PathTemplate:     "{docs_dir}/BUG_LOG.md",
		RequiredMetadata: []string{"severity", "component", "status"},
	},
}

// MissingMetadata returns the subset of a stream's required keys absent
// from metadata.
func MissingMetadata(stream Stream, metadata map[string]string) []string {
	var missing []string
	for _, key := range stream.RequiredMetadata {
		if _, ok := metadata[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// ResolvePath expands a stream's path template against a project's
// concrete paths.
func ResolvePath(template, projectSlug, projectRoot, progressLog, docsDir string) string {
	replacer := strings.NewReplacer(
		"{project_slug}", projectSlug,
		"{project_root}", projectRoot,
		"{progress_log}", progressLog,
		"{docs_dir}", docsDir,
		"{PROJECT_SLUG}", projectSlug,
		"{PROJECT_ROOT}", projectRoot,
		"{PROGRESS_LOG}", progressLog,
		"{DOCS_DIR}", docsDir,
	)
	return replacer.Replace(template)
}
