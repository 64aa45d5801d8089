package toolrouter

import (
	"os"
	"path/filepath"

	"github.com/kdlbs/scribe-mcp/internal/docs"
	"github.com/kdlbs/scribe-mcp/internal/reminders"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// docStatus inspects project's scaffolded documents on disk and classifies
// each as missing, incomplete (shorter than minLen, 400 bytes), or
// complete, for the reminder engine's docs.missing/docs.incomplete checks.
func (r *Router) docStatus(project *storage.Project) map[string]reminders.DocStatus {
	status := make(map[string]reminders.DocStatus, len(docs.ScaffoldDocs))
	const minLen = 400
	for _, name := range docs.ScaffoldDocs {
		fileName, ok := docs.FileNames[name]
		if !ok {
			continue
		}
		path := filepath.Join(project.DocsDir, fileName)
		info, err := os.Stat(path)
		switch {
		case err != nil:
			status[string(name)] = reminders.DocMissing
		case info.Size() < int64(minLen):
			status[string(name)] = reminders.DocIncomplete
		default:
			status[string(name)] = reminders.DocComplete
		}
	}
	return status
}

// currentPhase reads project's phase plan document and extracts the status
// recorded under its current_phase marker, for the reminder engine's
// phase.current check. Returns "" if the document is absent or unmarked.
func (r *Router) currentPhase(project *storage.Project) string {
	fileName, ok := docs.FileNames[docs.DocPhasePlan]
	if !ok {
		return ""
	}
	content, err := os.ReadFile(filepath.Join(project.DocsDir, fileName))
	if err != nil {
		return ""
	}
	doc, err := docs.Parse(string(content))
	if err != nil {
		return ""
	}
	return docs.CurrentPhase(doc.Body)
}
