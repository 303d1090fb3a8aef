package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Enumerate lists the documents under root whose extension is in exts,
// skipping any path matched by an exclude glob. Glob patterns are matched
// against slash-separated paths relative to root. Results are absolute and
// sorted.
func Enumerate(root string, exts, exclude []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source directory %q is not a directory", root)
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	accepted := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		accepted[strings.ToLower(ext)] = struct{}{}
	}

	var out []string
	err = doublestar.GlobWalk(os.DirFS(root), "**", func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if _, ok := accepted[strings.ToLower(path.Ext(rel))]; !ok {
			return nil
		}
		if Excluded(rel, exclude) {
			return nil
		}
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate documents: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Excluded reports whether the slash-separated relative path matches any pattern.
func Excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
