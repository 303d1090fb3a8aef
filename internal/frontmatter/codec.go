package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformed marks a header that exists but cannot be decoded as a YAML mapping.
var ErrMalformed = errors.New("malformed frontmatter")

const delimiter = "---"

// Codec parses and serializes documents with an optional YAML header.
type Codec struct{}

// Parse splits text into its header and body. Text without an opening
// delimiter, or with an opening delimiter that is never closed, has an empty
// header and is returned whole as the body.
func (Codec) Parse(text string) (*Header, string, error) {
	newline := ""
	switch {
	case strings.HasPrefix(text, delimiter+"\r\n"):
		newline = "\r\n"
	case strings.HasPrefix(text, delimiter+"\n"):
		newline = "\n"
	default:
		return &Header{newline: "\n"}, text, nil
	}

	start := len(delimiter) + len(newline)
	yamlEnd, bodyStart, ok := findClose(text, start)
	if !ok {
		return &Header{newline: newline}, text, nil
	}

	doc, err := decodeDocument(text[start:yamlEnd])
	if err != nil {
		return nil, "", err
	}

	return &Header{doc: doc, root: doc.Content[0], raw: text[:bodyStart], newline: newline}, text[bodyStart:], nil
}

// findClose locates the closing delimiter line. It returns the end of the YAML
// content and the start of the body, which begins after exactly one line
// ending following the delimiter.
func findClose(text string, start int) (int, int, bool) {
	// An empty header closes on the line right after the opening delimiter.
	if rest := text[start:]; strings.HasPrefix(rest, delimiter) {
		if end, ok := closeLineEnd(text, start+len(delimiter)); ok {
			return start, end, true
		}
	}
	offset := start
	for {
		idx := strings.Index(text[offset:], "\n"+delimiter)
		if idx < 0 {
			return 0, 0, false
		}
		lineStart := offset + idx + 1
		if end, ok := closeLineEnd(text, lineStart+len(delimiter)); ok {
			return lineStart, end, true
		}
		offset = lineStart
	}
}

func closeLineEnd(text string, pos int) (int, bool) {
	switch {
	case pos == len(text):
		return pos, true
	case strings.HasPrefix(text[pos:], "\r\n"):
		return pos + 2, true
	case text[pos] == '\n':
		return pos + 1, true
	default:
		return 0, false
	}
}

// decodeDocument returns a document node whose single child is the header
// mapping. Document level comments stay on the returned node.
func decodeDocument(content string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return emptyDocument(&doc), nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return emptyDocument(&doc), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: header must be a mapping", ErrMalformed)
	}
	return &doc, nil
}

func emptyDocument(parsed *yaml.Node) *yaml.Node {
	return &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: parsed.HeadComment,
		FootComment: parsed.FootComment,
		Content:     []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}
}

// Serialize joins header and body. An unmodified header is emitted exactly as
// parsed; a modified one is re-encoded. An absent or empty header emits nothing.
func (Codec) Serialize(h *Header, body string) (string, error) {
	if h == nil {
		return body, nil
	}
	if !h.modified {
		return h.raw + body, nil
	}
	if h.root == nil || len(h.root.Content) == 0 {
		return body, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(h.node()); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}

	encoded := buf.String()
	newline := h.newline
	if newline == "" {
		newline = "\n"
	}
	if newline != "\n" {
		encoded = strings.ReplaceAll(encoded, "\n", newline)
	}

	var out strings.Builder
	out.Grow(len(encoded) + len(body) + 8)
	out.WriteString(delimiter)
	out.WriteString(newline)
	out.WriteString(encoded)
	out.WriteString(delimiter)
	out.WriteString(newline)
	out.WriteString(body)
	return out.String(), nil
}
