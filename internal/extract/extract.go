package extract

import (
	"sort"
	"strings"

	"imgsync/internal/frontmatter"
)

// URLSet is an unordered set of decoded remote URLs.
type URLSet map[string]struct{}

// Add inserts url.
func (s URLSet) Add(url string) {
	s[url] = struct{}{}
}

// Has reports whether url is in the set.
func (s URLSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Union adds every member of other.
func (s URLSet) Union(other URLSet) {
	for url := range other {
		s[url] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for url := range s {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// Match is one discovered reference in a body.
type Match struct {
	Syntax string
	Raw    string
	URL    string
	Offset int
}

var entityReplacer = []struct{ entity, char string }{
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#039;", "'"},
}

// DecodeEntities replaces the five HTML entities imgsync understands, each
// globally and in a fixed order.
func DecodeEntities(value string) string {
	for _, e := range entityReplacer {
		value = strings.ReplaceAll(value, e.entity, e.char)
	}
	return value
}

// IsRemote reports whether the raw captured value is an absolute http(s) URL.
func IsRemote(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// Matches scans body with every syntax and returns remote references in scan
// order. Malformed markup yields no match rather than an error.
func Matches(body string) []Match {
	var out []Match
	for _, syntax := range Syntaxes {
		for _, loc := range syntax.discover.FindAllStringSubmatchIndex(body, -1) {
			raw := body[loc[2]:loc[3]]
			if !IsRemote(raw) {
				continue
			}
			out = append(out, Match{
				Syntax: syntax.Name,
				Raw:    raw,
				URL:    DecodeEntities(raw),
				Offset: loc[0],
			})
		}
	}
	return out
}

// FromBody returns the distinct remote URLs referenced in body.
func FromBody(body string) URLSet {
	set := URLSet{}
	for _, m := range Matches(body) {
		set.Add(m.URL)
	}
	return set
}

// FromHeader returns remote URLs held by the recognized keys of h. String
// values, string list items, and the url field of record list items count.
func FromHeader(h *frontmatter.Header, keys []string) URLSet {
	set := URLSet{}
	if !h.Present() {
		return set
	}
	add := func(raw string) {
		if IsRemote(raw) {
			set.Add(DecodeEntities(raw))
		}
	}
	for _, key := range keys {
		value, ok := h.Get(key)
		if !ok {
			continue
		}
		switch value.Kind {
		case frontmatter.KindScalar:
			add(value.Scalar)
		case frontmatter.KindList:
			for _, item := range value.Items {
				if item.Kind == frontmatter.KindScalar || item.Kind == frontmatter.KindRecord {
					add(item.Text)
				}
			}
		}
	}
	return set
}
