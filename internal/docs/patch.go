package docs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/kdlbs/scribe-mcp/internal/scerr"
)

// PatchMode selects apply_patch's input format.
type PatchMode string

const (
	PatchUnified    PatchMode = "unified"
	PatchStructured PatchMode = "structured"
)

// hunk is a single @@ block of a unified diff.
type hunk struct {
	oldStart int
	lines    []diffLine
}

type diffLine struct {
	op   byte // ' ' context, '+' add, '-' remove
	text string
}

// ApplyUnifiedPatch applies a unified diff (a single file's hunks, with or
// without --- /+++ headers) to body, returning the new content and the
// number of hunks applied.
func ApplyUnifiedPatch(body, patchText string) (string, int, error) {
	hunks, err := parseHunks(patchText)
	if err != nil {
		return "", 0, scerr.Wrap(scerr.KindParameterValidation, err, "parse patch")
	}
	if len(hunks) == 0 {
		return "", 0, scerr.New(scerr.KindParameterValidation, "patch contains no hunks")
	}

	lines := strings.Split(body, "\n")
	// Apply in descending oldStart order so earlier hunks' line numbers
	// stay valid as later ones shift the slice.
	ordered := make([]hunk, len(hunks))
	copy(ordered, hunks)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].oldStart > ordered[i].oldStart {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	for _, h := range ordered {
		var err error
		lines, err = applyHunk(lines, h)
		if err != nil {
			return "", 0, scerr.Wrap(scerr.KindVerificationFailed, err, fmt.Sprintf("apply hunk at line %d", h.oldStart))
		}
	}
	return strings.Join(lines, "\n"), len(hunks), nil
}

func parseHunks(patchText string) ([]hunk, error) {
	lines := strings.Split(patchText, "\n")
	var hunks []hunk
	var current *hunk

	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index ") {
			i++
			continue
		}
		if strings.HasPrefix(line, "@@") {
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			i++
			for i < len(lines) {
				l := lines[i]
				if strings.HasPrefix(l, "@@") || strings.HasPrefix(l, "---") || strings.HasPrefix(l, "diff ") {
					break
				}
				if l == "" {
					h.lines = append(h.lines, diffLine{op: ' ', text: ""})
					i++
					continue
				}
				op := l[0]
				if op == '\\' {
					i++
					continue
				}
				if op != '+' && op != '-' && op != ' ' {
					break
				}
				h.lines = append(h.lines, diffLine{op: op, text: l[1:]})
				i++
			}
			hunks = append(hunks, h)
			current = &hunks[len(hunks)-1]
			_ = current
			continue
		}
		i++
	}
	return hunks, nil
}

func parseHunkHeader(line string) (hunk, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "@@") {
		return hunk{}, fmt.Errorf("not a hunk header: %s", line)
	}
	end := strings.Index(line[2:], "@@")
	if end < 0 {
		return hunk{}, fmt.Errorf("malformed hunk header: %s", line)
	}
	inner := strings.TrimSpace(line[2 : 2+end])
	parts := strings.Fields(inner)
	if len(parts) < 1 {
		return hunk{}, fmt.Errorf("malformed hunk header: %s", line)
	}
	oldStart, _, err := parseRange(parts[0])
	if err != nil {
		return hunk{}, fmt.Errorf("old range: %w", err)
	}
	return hunk{oldStart: oldStart}, nil
}

func parseRange(s string) (int, int, error) {
	if len(s) == 0 {
		return 0, 0, fmt.Errorf("empty range")
	}
	s = s[1:]
	if idx := strings.Index(s, ","); idx >= 0 {
		start, err := strconv.Atoi(s[:idx])
		if err != nil {
			return 0, 0, err
		}
		count, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return 0, 0, err
		}
		return start, count, nil
	}
	start, err := strconv.Atoi(s)
	if err != nil {
		return 0, 0, err
	}
	return start, 1, nil
}

func applyHunk(lines []string, h hunk) ([]string, error) {
	startIdx := h.oldStart - 1
	if startIdx < 0 {
		startIdx = 0
	}

	lineIdx := startIdx
	for _, dl := range h.lines {
		if dl.op == ' ' || dl.op == '-' {
			if lineIdx >= len(lines) {
				return nil, fmt.Errorf("context line %d out of range", lineIdx+1)
			}
			if lines[lineIdx] != dl.text {
				return nil, fmt.Errorf("context mismatch at line %d: expected %q, got %q", lineIdx+1, dl.text, lines[lineIdx])
			}
			lineIdx++
		}
	}

	newLines := append([]string{}, lines[:startIdx]...)
	for _, dl := range h.lines {
		switch dl.op {
		case ' ', '+':
			newLines = append(newLines, dl.text)
		}
	}
	afterIdx := startIdx
	for _, dl := range h.lines {
		if dl.op == ' ' || dl.op == '-' {
			afterIdx++
		}
	}
	if afterIdx < len(lines) {
		newLines = append(newLines, lines[afterIdx:]...)
	}
	return newLines, nil
}

// StructuredEdit is one apply_patch structured-mode edit.
type StructuredEdit struct {
	Type       string // "replace_range" or "replace_block"
	StartLine  int    // 1-indexed, inclusive
	EndLine    int    // 1-indexed, inclusive
	Anchor     string
	NewContent string
}

// ApplyStructuredEdit applies a single structured edit to body.
func ApplyStructuredEdit(body string, edit StructuredEdit) (string, error) {
	switch edit.Type {
	case "replace_range":
		return ReplaceRange(body, edit.StartLine, edit.EndLine, edit.NewContent)
	case "replace_block":
		return replaceBlock(body, edit.Anchor, edit.NewContent)
	default:
		return "", scerr.Newf(scerr.KindParameterValidation, "unknown structured edit type %q", edit.Type)
	}
}

// replaceBlock locates edit.Anchor as a plain substring on exactly one
// body line outside any fenced code block, and replaces that line with
// newContent.
func replaceBlock(body, anchor, newContent string) (string, error) {
	lines := strings.Split(body, "\n")
	var matches []int
	inFence := false
	for i, l := range lines {
		if fencePattern.MatchString(strings.TrimSpace(l)) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.Contains(l, anchor) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return "", scerr.New(scerr.KindParameterValidation, "STRUCTURED_EDIT_ANCHOR_NOT_FOUND").
			WithField("anchor", anchor)
	case 1:
		lines[matches[0]] = newContent
		return strings.Join(lines, "\n"), nil
	default:
		matchLines := make([]int, len(matches))
		for i, m := range matches {
			matchLines[i] = m + 1
		}
		return "", scerr.New(scerr.KindParameterValidation, "STRUCTURED_EDIT_ANCHOR_AMBIGUOUS").
			WithField("anchor", anchor).
			WithField("match_lines", matchLines)
	}
}

// ReplaceRange replaces the 1-indexed inclusive [start, end] line range of
// body with content.
func ReplaceRange(body string, start, end int, content string) (string, error) {
	lines := strings.Split(body, "\n")
	if start < 1 || end < start || end > len(lines) {
		return "", scerr.Newf(scerr.KindParameterValidation, "range %d-%d out of bounds for %d lines", start, end, len(lines))
	}
	newLines := append([]string{}, lines[:start-1]...)
	newLines = append(newLines, strings.Split(content, "\n")...)
	newLines = append(newLines, lines[end:]...)
	return strings.Join(newLines, "\n"), nil
}

// UnifiedDiffPreview renders the change from before to after as go-diff's
// pretty text, used as the DocChange response's rendered diff preview:
// unchanged, inserted and deleted text in document order, with insertions
// and deletions marked inline by ANSI color codes. It is not a line-based
// unified diff (no hunk headers or +/- prefixes). Identical inputs yield "".
func UnifiedDiffPreview(before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
