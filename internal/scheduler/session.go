package scheduler

import "sync"

// Session remembers URLs resolved earlier in the same process so repeated
// runs in watch mode skip work. It never outlives the process.
type Session struct {
	mu   sync.Mutex
	seen map[string]string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{seen: make(map[string]string)}
}

func (s *Session) get(url string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.seen[url]
	return path, ok
}

func (s *Session) put(url, publicPath string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.seen[url] = publicPath
	s.mu.Unlock()
}

func (s *Session) evict(url string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.seen, url)
	s.mu.Unlock()
}

// Len returns the number of remembered URLs.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
