package docs

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Frontmatter wraps a document's YAML front-matter block. It keeps the
// parsed yaml.Node so Render can preserve key order and comment
// formatting where possible, falling back to a plain map re-encode once
// the caller mutates structural (list/map) values through Set.
type Frontmatter struct {
	node    yaml.Node
	values  map[string]any
	dirty   bool
}

// ParseFrontmatter parses a raw YAML block (without the surrounding "---"
// delimiters) into a Frontmatter.
func ParseFrontmatter(raw string) (Frontmatter, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return Frontmatter{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	values := map[string]any{}
	if len(node.Content) > 0 {
		if err := node.Content[0].Decode(&values); err != nil {
			return Frontmatter{}, fmt.Errorf("decode frontmatter: %w", err)
		}
	}
	return Frontmatter{node: node, values: values}, nil
}

// Get returns a top-level front-matter value.
func (f Frontmatter) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// GetStringSlice returns a top-level list value as []string, used for
// fields like related_docs.
func (f Frontmatter) GetStringSlice(key string) []string {
	raw, ok := f.values[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Set assigns a structural (list/map) value and marks the frontmatter
// dirty: Render will re-encode it from the values map rather than
// preserving the original node formatting, per spec's "rewrites it when
// structural changes are introduced".
func (f *Frontmatter) Set(key string, value any) {
	if f.values == nil {
		f.values = map[string]any{}
	}
	f.values[key] = value
	f.dirty = true
}

// Render serializes the front matter back to YAML. If unmodified, the
// original node is re-encoded to preserve formatting; if Set was called,
// the values map is encoded fresh.
func (f Frontmatter) Render() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if !f.dirty && len(f.node.Content) > 0 {
		if err := enc.Encode(f.node.Content[0]); err != nil {
			return "", fmt.Errorf("render frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	if err := enc.Encode(f.values); err != nil {
		return "", fmt.Errorf("render frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
