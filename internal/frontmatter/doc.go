// Package frontmatter splits documentation sources into a YAML header and a
// body and joins them back together.
//
// Headers are held as yaml.v3 nodes so key order, comments, and scalar styles
// survive a round trip. An untouched header is written back byte for byte.
// Callers read header fields through the tagged Value type and replace URLs
// with SetScalar and SetItem on a clone.
package frontmatter
