package docs

import "strings"

// CurrentPhase extracts the status recorded under the phase plan's
// "current_phase" marker (see DocPhasePlan's default template), collapsing
// it to a single line for use in reminder text. Returns "" if the document
// has no current_phase section.
func CurrentPhase(body string) string {
	section, ok := ExtractSection(body, "current_phase")
	if !ok {
		return ""
	}

	var parts []string
	for _, l := range strings.Split(section, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}
