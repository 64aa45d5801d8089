package docs

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"

	"github.com/kdlbs/scribe-mcp/internal/scerr"
)

// sectionMarker matches "<!-- ID: section_id -->" on its own line.
var sectionMarker = regexp.MustCompile(`^<!--\s*ID:\s*([A-Za-z0-9_.-]+)\s*-->\s*$`)

// RenderTemplate executes content as a text/template against vars, returning
// content unchanged if it contains no template actions.
func RenderTemplate(content string, vars map[string]string) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}
	tpl, err := template.New("doc-edit").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", scerr.Wrap(scerr.KindParameterValidation, err, "parse template content")
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", scerr.Wrap(scerr.KindParameterValidation, err, "render template content")
	}
	return buf.String(), nil
}

// ReplaceSection finds the body region bounded by a "<!-- ID: sectionID -->"
// marker and the next section marker (or end of body), and replaces the
// content between them. content is first rendered as a template against
// vars. The marker line itself is preserved.
func ReplaceSection(body, sectionID, content string, vars map[string]string) (string, error) {
	rendered, err := RenderTemplate(content, vars)
	if err != nil {
		return "", err
	}

	lines := strings.Split(body, "\n")
	startIdx := -1
	for i, l := range lines {
		if m := sectionMarker.FindStringSubmatch(strings.TrimSpace(l)); m != nil && m[1] == sectionID {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return "", scerr.Newf(scerr.KindNotFound, "section marker %q not found", sectionID).
			WithField("section_id", sectionID)
	}

	endIdx := len(lines)
	for i := startIdx + 1; i < len(lines); i++ {
		if sectionMarker.MatchString(strings.TrimSpace(lines[i])) {
			endIdx = i
			break
		}
	}

	newLines := append([]string{}, lines[:startIdx+1]...)
	if rendered != "" {
		newLines = append(newLines, strings.Split(rendered, "\n")...)
	}
	newLines = append(newLines, lines[endIdx:]...)
	return strings.Join(newLines, "\n"), nil
}

// ExtractSection returns the body region bounded by a "<!-- ID: sectionID
// -->" marker and the next section marker (or end of body), excluding the
// marker line itself. ok is false if sectionID has no marker in body.
func ExtractSection(body, sectionID string) (section string, ok bool) {
	lines := strings.Split(body, "\n")
	startIdx := -1
	for i, l := range lines {
		if m := sectionMarker.FindStringSubmatch(strings.TrimSpace(l)); m != nil && m[1] == sectionID {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return "", false
	}

	endIdx := len(lines)
	for i := startIdx + 1; i < len(lines); i++ {
		if sectionMarker.MatchString(strings.TrimSpace(lines[i])) {
			endIdx = i
			break
		}
	}
	return strings.Join(lines[startIdx+1:endIdx], "\n"), true
}

// Append renders content (or template) as a template against vars and adds
// it as a new block at the end of body.
func Append(body, content string, vars map[string]string) (string, error) {
	rendered, err := RenderTemplate(content, vars)
	if err != nil {
		return "", err
	}
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return rendered, nil
	}
	return body + "\n\n" + rendered, nil
}

// NewDocParams is the create_doc operation's input.
type NewDocParams struct {
	DocName     DocName
	Body        string
	Template    string
	Frontmatter map[string]any
	Vars        map[string]string
}

// CreateDoc renders a brand-new document's full text (front matter plus
// body) from either an explicit body or a template.
func CreateDoc(p NewDocParams) (string, error) {
	content := p.Body
	if content == "" {
		content = p.Template
	}
	if content == "" {
		return "", scerr.New(scerr.KindParameterValidation, "CREATE_DOC_MISSING_CONTENT").
			WithField("doc_name", string(p.DocName))
	}

	rendered, err := RenderTemplate(content, p.Vars)
	if err != nil {
		return "", err
	}

	if len(p.Frontmatter) == 0 {
		return rendered, nil
	}

	fm := Frontmatter{}
	for k, v := range p.Frontmatter {
		fm.Set(k, v)
	}
	rawFM, err := fm.Render()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(rawFM)
	if !strings.HasSuffix(rawFM, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	b.WriteString(rendered)
	return b.String(), nil
}
