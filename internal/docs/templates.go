package docs

// FileNames maps the scaffoldable document kinds to their filename within
// a project's docs directory.
var FileNames = map[DocName]string{
	DocArchitecture: "ARCHITECTURE.md",
	DocPhasePlan:    "PHASE_PLAN.md",
	DocChecklist:    "CHECKLIST.md",
}

// ScaffoldDocs lists the documents generate_doc_templates creates for a new
// project. progress_log, doc_log, security_log, and bug_log are not
// scaffolded here - they come into existence on first append to their
// stream.
var ScaffoldDocs = []DocName{DocArchitecture, DocPhasePlan, DocChecklist}

// defaultTemplates holds the built-in body for each scaffolded document,
// rendered against {{.project}} and {{.date_utc}}.
var defaultTemplates = map[DocName]string{
	DocArchitecture: `# {{.project}} Architecture

<!-- ID: overview -->
<!-- ID: components -->
<!-- ID: decisions -->
`,
	DocPhasePlan: `# {{.project}} Phase Plan

<!-- ID: current_phase -->
Not yet started.

<!-- ID: phases -->
`,
	DocChecklist: `# {{.project}} Checklist

- [ ] Define scope
- [ ] Implement core functionality
- [ ] Write tests
- [ ] Update documentation
`,
}

// DefaultTemplate returns the built-in scaffolding body for name, or ""
// if name has no default template (generate_doc_templates then skips it).
func DefaultTemplate(name DocName) string {
	return defaultTemplates[name]
}
