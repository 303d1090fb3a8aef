package frontmatter

import "gopkg.in/yaml.v3"

// Kind tags the shape of a header value or list item.
type Kind int

const (
	// KindOther covers every shape imgsync does not rewrite.
	KindOther Kind = iota
	// KindScalar is a plain string value.
	KindScalar
	// KindList is a sequence of items.
	KindList
	// KindRecord is a mapping item carrying a string url field.
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "other"
	}
}

// Item is one element of a list value. Text holds the string for scalars and
// the url field for records.
type Item struct {
	Kind Kind
	Text string
}

// Value is the tagged view of one header field.
type Value struct {
	Kind   Kind
	Scalar string
	Items  []Item
}

const recordURLKey = "url"

func isString(node *yaml.Node) bool {
	return node != nil && node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str"
}

func valueOf(node *yaml.Node) Value {
	switch {
	case isString(node):
		return Value{Kind: KindScalar, Scalar: node.Value}
	case node != nil && node.Kind == yaml.SequenceNode:
		items := make([]Item, 0, len(node.Content))
		for _, child := range node.Content {
			items = append(items, itemOf(child))
		}
		return Value{Kind: KindList, Items: items}
	default:
		return Value{Kind: KindOther}
	}
}

func itemOf(node *yaml.Node) Item {
	if isString(node) {
		return Item{Kind: KindScalar, Text: node.Value}
	}
	if node.Kind == yaml.MappingNode {
		if urlNode := mappingValue(node, recordURLKey); isString(urlNode) {
			return Item{Kind: KindRecord, Text: urlNode.Value}
		}
	}
	return Item{Kind: KindOther}
}

// mappingValue returns the value node for the first occurrence of key.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func replaceMappingValue(mapping *yaml.Node, key string, value *yaml.Node) bool {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return true
		}
	}
	return false
}

func withText(node *yaml.Node, text string) *yaml.Node {
	clone := *node
	clone.Value = text
	return &clone
}

func deepCopy(node *yaml.Node) *yaml.Node {
	if node == nil {
		return nil
	}
	clone := *node
	if len(node.Content) > 0 {
		clone.Content = make([]*yaml.Node, len(node.Content))
		for i, child := range node.Content {
			clone.Content[i] = deepCopy(child)
		}
	}
	return &clone
}
