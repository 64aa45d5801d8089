package docs

import (
	"fmt"
	"regexp"
	"strings"
)

// Heading is one scanned heading in a document body.
type Heading struct {
	Line  int // 0-indexed line within the body
	Level int
	Text  string
	Atx   bool // true if written as "# Text", false if Setext-underlined
}

var atxPattern = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
var setextH1Pattern = regexp.MustCompile(`^=+\s*$`)
var setextH2Pattern = regexp.MustCompile(`^-+\s*$`)
var fencePattern = regexp.MustCompile("^(```|~~~)")

// ScanHeadings walks body line by line, recognizing ATX and Setext
// headings while skipping anything inside a fenced code block.
func ScanHeadings(body string) []Heading {
	lines := strings.Split(body, "\n")
	var headings []Heading
	inFence := false

	for i, line := range lines {
		if fencePattern.MatchString(strings.TrimSpace(line)) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if m := atxPattern.FindStringSubmatch(line); m != nil {
			headings = append(headings, Heading{Line: i, Level: len(m[1]), Text: m[2], Atx: true})
			continue
		}

		if i+1 < len(lines) {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				if setextH1Pattern.MatchString(lines[i+1]) {
					headings = append(headings, Heading{Line: i, Level: 1, Text: trimmed, Atx: false})
				} else if setextH2Pattern.MatchString(lines[i+1]) {
					headings = append(headings, Heading{Line: i, Level: 2, Text: trimmed, Atx: false})
				}
			}
		}
	}
	return headings
}

// NormalizeHeaders renumbers headings into hierarchical "1", "1.1",
// "1.1.1", … form, converts Setext headings to ATX, and leaves headings
// already in canonical form untouched. It is idempotent: running it twice
// on its own output produces no further change.
func NormalizeHeaders(body string) string {
	lines := strings.Split(body, "\n")
	headings := ScanHeadings(body)
	if len(headings) == 0 {
		return body
	}

	counters := make([]int, 6)
	skipNext := make(map[int]bool)

	type rewrite struct {
		line int
		text string
		// consumeNext marks a Setext underline line to be blanked out
		// since the heading becomes a single ATX line.
		consumeNext bool
	}
	var rewrites []rewrite

	for _, h := range headings {
		if skipNext[h.Line] {
			continue
		}
		level := h.Level
		counters[level-1]++
		for i := level; i < len(counters); i++ {
			counters[i] = 0
		}
		number := numberString(counters[:level])
		text := strings.TrimSpace(h.Text)
		text = stripExistingNumber(text)
		newLine := fmt.Sprintf("%s %s %s", strings.Repeat("#", level), number, text)

		rewrites = append(rewrites, rewrite{line: h.Line, text: newLine, consumeNext: !h.Atx})
		if !h.Atx {
			skipNext[h.Line+1] = true
		}
	}

	consumed := make(map[int]bool)
	for _, r := range rewrites {
		lines[r.line] = r.text
		if r.consumeNext {
			consumed[r.line+1] = true
		}
	}

	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if consumed[i] {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func numberString(counters []int) string {
	parts := make([]string, len(counters))
	for i, c := range counters {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, ".")
}

var existingNumberPattern = regexp.MustCompile(`^\d+(\.\d+)*\s+`)

func stripExistingNumber(text string) string {
	return existingNumberPattern.ReplaceAllString(text, "")
}
