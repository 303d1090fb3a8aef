package rewrite

import (
	"strings"
	"sync"

	"imgsync/internal/extract"
	"imgsync/internal/frontmatter"
)

// Mapping is the read side of the URL to public path mapping.
type Mapping interface {
	Get(url string) (string, bool)
	URLs() []string
}

// Result holds the rewritten document parts.
type Result struct {
	Header        *frontmatter.Header
	Body          string
	HeaderChanged bool
	BodyChanged   bool
}

// Changed reports whether anything was substituted.
func (r Result) Changed() bool {
	return r.HeaderChanged || r.BodyChanged
}

// Rewriter applies a mapping to documents. It is safe for concurrent use.
type Rewriter struct {
	keys      []string
	replacers sync.Map
}

// New returns a Rewriter that touches only the listed header keys.
func New(keys []string) *Rewriter {
	return &Rewriter{keys: append([]string(nil), keys...)}
}

// Rewrite returns a rewritten copy of header and body. The input header is
// never modified.
func (r *Rewriter) Rewrite(header *frontmatter.Header, body string, mapping Mapping) Result {
	result := Result{Header: header, Body: body}
	if mapping == nil {
		return result
	}

	if header.Present() {
		clone := header.Clone()
		r.rewriteHeader(clone, mapping)
		if clone.Modified() {
			result.Header = clone
			result.HeaderChanged = true
		}
	}

	rewritten := body
	for _, url := range mapping.URLs() {
		if !strings.Contains(rewritten, url) {
			continue
		}
		path, _ := mapping.Get(url)
		rewritten = r.replacer(url, path).Replace(rewritten)
	}
	if rewritten != body {
		result.Body = rewritten
		result.BodyChanged = true
	}
	return result
}

// rewriteHeader applies mapping to the recognized keys of h. Setters mark h
// modified only when a value actually changes.
func (r *Rewriter) rewriteHeader(h *frontmatter.Header, mapping Mapping) {
	for _, key := range r.keys {
		value, ok := h.Get(key)
		if !ok {
			continue
		}
		switch value.Kind {
		case frontmatter.KindScalar:
			if path, ok := mapping.Get(value.Scalar); ok {
				h.SetScalar(key, path)
			}
		case frontmatter.KindList:
			for i, item := range value.Items {
				if item.Kind != frontmatter.KindScalar && item.Kind != frontmatter.KindRecord {
					continue
				}
				if path, ok := mapping.Get(item.Text); ok {
					h.SetItem(key, i, path)
				}
			}
		}
	}
}

func (r *Rewriter) replacer(url, path string) *extract.Replacer {
	key := url + "\x00" + path
	if cached, ok := r.replacers.Load(key); ok {
		return cached.(*extract.Replacer)
	}
	created, _ := r.replacers.LoadOrStore(key, extract.NewReplacer(url, path))
	return created.(*extract.Replacer)
}
