package extract

import (
	"regexp"
	"strings"
)

// Syntax is one image reference form.
type Syntax struct {
	Name     string
	discover *regexp.Regexp
	rules    func(quotedURL, path string) []rule
}

type rule struct {
	pattern  string
	template string
}

var (
	// Markdown matches ![alt](url).
	Markdown = Syntax{
		Name:     "markdown",
		discover: regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`),
		rules: func(u, p string) []rule {
			return []rule{{pattern: `!\[([^\]]*)\]\(` + u + `\)`, template: "![${1}](" + p + ")"}}
		},
	}
	// HTML matches <img ... src="url" ...>. Rewriting also accepts single quotes.
	HTML = Syntax{
		Name:     "html",
		discover: regexp.MustCompile(`<img[^>]+src="([^"]+)"[^>]*>`),
		rules: func(u, p string) []rule {
			return []rule{
				{pattern: `((?i:<img)[^>]*(?i:src)=)"` + u + `"([^>]*>)`, template: `${1}"` + p + `"${2}`},
				{pattern: `((?i:<img)[^>]*(?i:src)=)'` + u + `'([^>]*>)`, template: `${1}'` + p + `'${2}`},
			}
		},
	}
	// Binding matches :src="url" and v-bind:src="url".
	Binding = Syntax{
		Name:     "binding",
		discover: regexp.MustCompile(`(?::src|v-bind:src)="([^"]+)"`),
		rules: func(u, p string) []rule {
			return []rule{
				{pattern: `((?i::src|v-bind:src)=)"` + u + `"`, template: `${1}"` + p + `"`},
				{pattern: `((?i::src|v-bind:src)=)'` + u + `'`, template: `${1}'` + p + `'`},
			}
		},
	}
)

// Syntaxes lists every recognized form in scan order.
var Syntaxes = []Syntax{Markdown, HTML, Binding}

// Replacer rewrites exact occurrences of one URL across every syntax.
type Replacer struct {
	steps []replaceStep
}

type replaceStep struct {
	re       *regexp.Regexp
	template string
}

// NewReplacer compiles the rewrite patterns substituting url with path. The
// URL is matched literally and case-sensitively; only tag and attribute names
// ignore case. The path is inserted literally.
func NewReplacer(url, path string) *Replacer {
	quotedURL := regexp.QuoteMeta(url)
	literalPath := strings.ReplaceAll(path, "$", "$$")
	r := &Replacer{}
	for _, syntax := range Syntaxes {
		for _, rl := range syntax.rules(quotedURL, literalPath) {
			r.steps = append(r.steps, replaceStep{re: regexp.MustCompile(rl.pattern), template: rl.template})
		}
	}
	return r
}

// Replace returns body with every occurrence rewritten.
func (r *Replacer) Replace(body string) string {
	for _, step := range r.steps {
		if !step.re.MatchString(body) {
			continue
		}
		body = step.re.ReplaceAllString(body, step.template)
	}
	return body
}
