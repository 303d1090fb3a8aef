package scheduler

import (
	"sort"
	"sync"
)

// Mapping associates remote URLs with the public path of their local asset.
// Entries are insert-only; the first path recorded for a URL wins.
type Mapping struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{entries: make(map[string]string)}
}

// Insert records url -> path unless url is already present.
func (m *Mapping) Insert(url, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[url]; ok {
		return false
	}
	m.entries[url] = path
	return true
}

// Get returns the public path for url.
func (m *Mapping) Get(url string) (string, bool) {
	if m == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	path, ok := m.entries[url]
	return path, ok
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// URLs returns the mapped URLs in lexical order.
func (m *Mapping) URLs() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	out := make([]string, 0, len(m.entries))
	for url := range m.entries {
		out = append(out, url)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}
