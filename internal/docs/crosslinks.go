package docs

import (
	"os"
	"path/filepath"
	"strings"
)

// CrosslinkIssue describes one problem found by ValidateCrosslinks.
type CrosslinkIssue struct {
	Entry  string // the raw "PATH#anchor" front-matter entry
	Path   string
	Anchor string
	Reason string // "file_not_found" or "anchor_not_found"
}

// ValidateCrosslinks inspects a document's related_docs front-matter
// entries, each of the form "PATH#anchor" (the anchor is optional). baseDir
// is the directory the PATH segments are resolved relative to. When
// checkAnchors is true, each anchor must match a slug generated by one of
// the target document's headings.
func ValidateCrosslinks(fm Frontmatter, baseDir string, checkAnchors bool) []CrosslinkIssue {
	var issues []CrosslinkIssue
	for _, entry := range fm.GetStringSlice("related_docs") {
		path, anchor := splitCrosslink(entry)
		fullPath := filepath.Join(baseDir, path)

		content, err := os.ReadFile(fullPath)
		if err != nil {
			issues = append(issues, CrosslinkIssue{Entry: entry, Path: path, Anchor: anchor, Reason: "file_not_found"})
			continue
		}
		if !checkAnchors || anchor == "" {
			continue
		}

		doc, err := Parse(string(content))
		if err != nil {
			issues = append(issues, CrosslinkIssue{Entry: entry, Path: path, Anchor: anchor, Reason: "file_not_found"})
			continue
		}
		if !anchorExists(doc.Body, anchor) {
			issues = append(issues, CrosslinkIssue{Entry: entry, Path: path, Anchor: anchor, Reason: "anchor_not_found"})
		}
	}
	return issues
}

func splitCrosslink(entry string) (path, anchor string) {
	idx := strings.Index(entry, "#")
	if idx < 0 {
		return entry, ""
	}
	return entry[:idx], entry[idx+1:]
}

func anchorExists(body, anchor string) bool {
	for _, h := range ScanHeadings(body) {
		if Slugify(h.Text) == anchor {
			return true
		}
	}
	return false
}
