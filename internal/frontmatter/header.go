package frontmatter

import "gopkg.in/yaml.v3"

// Header is the parsed YAML block at the top of a document.
type Header struct {
	// doc wraps root and carries document level comments.
	doc      *yaml.Node
	root     *yaml.Node
	raw      string
	newline  string
	modified bool
}

// Present reports whether the source document carried a header block.
func (h *Header) Present() bool {
	return h != nil && h.raw != ""
}

// Keys lists top-level keys in document order.
func (h *Header) Keys() []string {
	if h == nil || h.root == nil {
		return nil
	}
	keys := make([]string, 0, len(h.root.Content)/2)
	for i := 0; i+1 < len(h.root.Content); i += 2 {
		keys = append(keys, h.root.Content[i].Value)
	}
	return keys
}

// Get returns the tagged value for key.
func (h *Header) Get(key string) (Value, bool) {
	if h == nil {
		return Value{}, false
	}
	node := mappingValue(h.root, key)
	if node == nil {
		return Value{}, false
	}
	return valueOf(node), true
}

// Modified reports whether a setter changed the header since it was parsed.
func (h *Header) Modified() bool {
	return h != nil && h.modified
}

// Clone returns an independent copy. Setters on the clone never affect h.
func (h *Header) Clone() *Header {
	if h == nil {
		return nil
	}
	clone := &Header{
		raw:      h.raw,
		newline:  h.newline,
		modified: h.modified,
	}
	if h.doc != nil {
		clone.doc = deepCopy(h.doc)
		clone.root = clone.doc.Content[0]
	} else {
		clone.root = deepCopy(h.root)
	}
	return clone
}

func (h *Header) node() *yaml.Node {
	if h.doc != nil {
		return h.doc
	}
	return h.root
}

// SetScalar replaces a string value. It returns false when key is absent or
// does not hold a string.
func (h *Header) SetScalar(key, text string) bool {
	if h == nil {
		return false
	}
	node := mappingValue(h.root, key)
	if !isString(node) {
		return false
	}
	if node.Value == text {
		return false
	}
	replaceMappingValue(h.root, key, withText(node, text))
	h.modified = true
	return true
}

// SetItem replaces the string at index of a list value. Scalar items are
// replaced outright; record items get a copy with only the url field changed.
func (h *Header) SetItem(key string, index int, text string) bool {
	if h == nil {
		return false
	}
	list := mappingValue(h.root, key)
	if list == nil || list.Kind != yaml.SequenceNode || index < 0 || index >= len(list.Content) {
		return false
	}
	item := list.Content[index]
	switch itemOf(item).Kind {
	case KindScalar:
		if item.Value == text {
			return false
		}
		list.Content[index] = withText(item, text)
	case KindRecord:
		urlNode := mappingValue(item, recordURLKey)
		if urlNode.Value == text {
			return false
		}
		record := *item
		record.Content = append([]*yaml.Node(nil), item.Content...)
		replaceMappingValue(&record, recordURLKey, withText(urlNode, text))
		list.Content[index] = &record
	default:
		return false
	}
	h.modified = true
	return true
}
