package docs

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tocStartMarker = "<!-- TOC:start -->"
const tocEndMarker = "<!-- TOC:end -->"

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify produces a GitHub-style anchor slug: accented letters folded to
// their base form, emoji and punctuation stripped, runs of non-alphanumeric
// characters collapsed to a single hyphen, result lowercased and trimmed
// of leading/trailing hyphens.
func Slugify(text string) string {
	folded := foldAccents(text)
	folded = strings.ToLower(folded)
	folded = stripEmoji(folded)
	slug := nonAlnumPattern.ReplaceAllString(folded, "-")
	return strings.Trim(slug, "-")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func stripEmoji(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GenerateTOC scans headings and writes a table-of-contents block
// delimited by <!-- TOC:start --> / <!-- TOC:end -->, replacing any
// existing block or inserting one after the first heading (or at the top
// if there is none). Slug collisions receive -1, -2, … suffixes. Running
// generate_toc again on unchanged headings produces an identical block,
// so the diff is empty.
func GenerateTOC(body string) string {
	headings := ScanHeadings(body)
	tocBlock := renderTOCBlock(headings)
	return replaceOrInsertBlock(body, tocStartMarker, tocEndMarker, tocBlock, insertAfterFirstHeading(headings))
}

func renderTOCBlock(headings []Heading) string {
	seen := map[string]int{}
	var b strings.Builder
	b.WriteString(tocStartMarker + "\n")
	for _, h := range headings {
		slug := Slugify(h.Text)
		if n, ok := seen[slug]; ok {
			seen[slug] = n + 1
			slug = slug + "-" + strconv.Itoa(n+1)
		} else {
			seen[slug] = 0
		}
		indent := strings.Repeat("  ", h.Level-1)
		b.WriteString(indent + "- [" + h.Text + "](#" + slug + ")\n")
	}
	b.WriteString(tocEndMarker)
	return b.String()
}

func insertAfterFirstHeading(headings []Heading) int {
	if len(headings) == 0 {
		return 0
	}
	return headings[0].Line + 1
}

// replaceOrInsertBlock replaces the content between start/end markers if
// present, otherwise inserts block at insertLine.
func replaceOrInsertBlock(body, start, end, block string, insertLine int) string {
	lines := strings.Split(body, "\n")
	startIdx, endIdx := -1, -1
	for i, l := range lines {
		if strings.TrimSpace(l) == start {
			startIdx = i
		}
		if strings.TrimSpace(l) == end {
			endIdx = i
		}
	}
	if startIdx >= 0 && endIdx >= startIdx {
		newLines := append([]string{}, lines[:startIdx]...)
		newLines = append(newLines, strings.Split(block, "\n")...)
		newLines = append(newLines, lines[endIdx+1:]...)
		return strings.Join(newLines, "\n")
	}

	if insertLine > len(lines) {
		insertLine = len(lines)
	}
	newLines := append([]string{}, lines[:insertLine]...)
	newLines = append(newLines, block)
	newLines = append(newLines, lines[insertLine:]...)
	return strings.Join(newLines, "\n")
}
