package docs

import "strings"

// ChecklistItem is one matched line from list_checklist_items, with a
// file-line number accounting for the front-matter block that precedes the
// body in the source file.
type ChecklistItem struct {
	Line    int // 1-indexed within the full source file, front matter included
	Text    string
	Done    bool
	Matched bool // true if a text filter was given and this item contains it
}

var checklistMarkers = []string{"- [ ]", "- [x]", "- [X]", "* [ ]", "* [x]", "* [X]"}

// ListChecklistItems scans body for Markdown checklist lines ("- [ ] ..." /
// "- [x] ..."), optionally filtered by a substring match on the item text,
// and returns them with line numbers offset by frontmatterLines (the number
// of lines the front-matter block plus its delimiters occupy in the full
// file, 0 if the document has no front matter).
func ListChecklistItems(body string, frontmatterLines int, text string, caseSensitive bool, requireMatch bool) []ChecklistItem {
	lines := strings.Split(body, "\n")
	var items []ChecklistItem

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		marker, isChecklist := matchChecklistMarker(trimmed)
		if !isChecklist {
			continue
		}
		itemText := strings.TrimSpace(trimmed[len(marker):])

		matched := true
		if text != "" {
			haystack, needle := itemText, text
			if !caseSensitive {
				haystack = strings.ToLower(haystack)
				needle = strings.ToLower(needle)
			}
			matched = strings.Contains(haystack, needle)
			if requireMatch && !matched {
				continue
			}
		}

		items = append(items, ChecklistItem{
			Line:    frontmatterLines + i + 1,
			Text:    itemText,
			Done:    strings.EqualFold(marker, "- [x]") || strings.EqualFold(marker, "* [x]"),
			Matched: matched,
		})
	}
	return items
}

func matchChecklistMarker(line string) (string, bool) {
	for _, m := range checklistMarkers {
		if strings.HasPrefix(line, m) {
			return m, true
		}
	}
	return "", false
}
