// Package document splits book content files into a YAML frontmatter block
// and a body, and re-composes them without touching the body bytes.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// ParseError reports a content file whose metadata block cannot be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "document: parse frontmatter: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Document is a parsed content file.
type Document struct {
	Frontmatter    map[string]any
	Body           string
	HasFrontmatter bool

	// node keeps key order and comments so rewriting one field does not
	// reshuffle the whole block.
	node *yaml.Node
}

// Parse splits raw file bytes into frontmatter and body. The body is kept
// exactly as it appears after the closing delimiter line. Without a leading
// delimiter (or without a closing one) the entire content is body.
func Parse(data []byte) (*Document, error) {
	block, body, ok := split(data)
	if !ok {
		return &Document{Body: string(data)}, nil
	}

	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if len(bytes.TrimSpace(block)) > 0 {
		var root yaml.Node
		if err := yaml.Unmarshal(block, &root); err != nil {
			return nil, &ParseError{Err: err}
		}
		if len(root.Content) > 0 {
			node = root.Content[0]
		}
		if node.Kind != yaml.MappingNode {
			return nil, &ParseError{Err: fmt.Errorf("metadata block is not a mapping")}
		}
	}

	fm := map[string]any{}
	if err := node.Decode(&fm); err != nil {
		return nil, &ParseError{Err: err}
	}

	return &Document{
		Frontmatter:    fm,
		Body:           string(body),
		HasFrontmatter: true,
		node:           node,
	}, nil
}

// split returns the YAML between the opening and closing delimiter lines and
// everything after the closing line.
func split(data []byte) (block, body []byte, ok bool) {
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 || string(bytes.TrimRight(data[:nl], "\r")) != delim {
		return nil, nil, false
	}
	rest := data[nl+1:]
	pos := 0
	for {
		end := bytes.IndexByte(rest[pos:], '\n')
		var line []byte
		next := len(rest)
		if end < 0 {
			line = rest[pos:]
		} else {
			line = rest[pos : pos+end]
			next = pos + end + 1
		}
		if string(bytes.TrimRight(line, "\r")) == delim {
			return rest[:pos], rest[next:], true
		}
		if end < 0 {
			return nil, nil, false
		}
		pos = next
	}
}

// Field returns the frontmatter value for key.
func (d *Document) Field(key string) (any, bool) {
	if d.Frontmatter == nil {
		return nil, false
	}
	v, ok := d.Frontmatter[key]
	return v, ok
}

// StringField returns the frontmatter value for key when it is a string.
func (d *Document) StringField(key string) string {
	v, _ := d.Field(key)
	s, _ := v.(string)
	return s
}

// SetField sets key in the frontmatter, creating the block if needed.
// Existing keys keep their position.
func (d *Document) SetField(key string, value any) error {
	var val yaml.Node
	if err := val.Encode(value); err != nil {
		return fmt.Errorf("document: encode %s: %w", key, err)
	}
	if d.node == nil {
		d.node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if d.Frontmatter == nil {
		d.Frontmatter = map[string]any{}
	}
	d.HasFrontmatter = true

	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.node.Content[i].Value == key {
			d.node.Content[i+1] = &val
			d.Frontmatter[key] = value
			return nil
		}
	}
	d.node.Content = append(d.node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&val,
	)
	d.Frontmatter[key] = value
	return nil
}

// DeleteField removes key from the frontmatter. It reports whether the key existed.
func (d *Document) DeleteField(key string) bool {
	if d.node == nil {
		return false
	}
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.node.Content[i].Value == key {
			d.node.Content = append(d.node.Content[:i], d.node.Content[i+2:]...)
			delete(d.Frontmatter, key)
			return true
		}
	}
	return false
}

// WithBody returns a copy of d carrying a different body and the same metadata.
func (d *Document) WithBody(body string) *Document {
	cp := *d
	cp.Body = body
	return &cp
}

// Bytes re-composes the document. The body is appended verbatim.
func (d *Document) Bytes() ([]byte, error) {
	if !d.HasFrontmatter {
		return []byte(d.Body), nil
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if d.node != nil && len(d.node.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d.node); err != nil {
			return nil, fmt.Errorf("document: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("document: encode frontmatter: %w", err)
		}
	}
	buf.WriteString(delim + "\n")
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

// Title returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func (d *Document) Title() string {
	if s := d.StringField("title"); s != "" {
		return s
	}
	return FirstHeading(d.Body)
}

// FirstHeading returns the text of the first "# " heading in body.
func FirstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// MissingFields returns the required keys that are absent or empty.
func (d *Document) MissingFields(required ...string) []string {
	var out []string
	for _, k := range required {
		v, ok := d.Field(k)
		if !ok || v == nil {
			out = append(out, k)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			out = append(out, k)
		}
	}
	return out
}
