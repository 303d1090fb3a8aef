package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// ImageServer serves deterministic image bytes and counts requests per path.
// Paths starting with /missing return 404.
type ImageServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests map[string]int
}

// NewImageServer starts a server that is closed when the test ends.
func NewImageServer(t testing.TB) *ImageServer {
	t.Helper()

	s := &ImageServer{requests: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *ImageServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	s.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/missing") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write([]byte("image:" + r.URL.Path))
}

// ImageURL returns an absolute URL for path on the server.
func (s *ImageServer) ImageURL(path string) string {
	return s.Server.URL + path
}

// Requests returns how often path was requested.
func (s *ImageServer) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// TotalRequests returns the number of requests served.
func (s *ImageServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.requests {
		total += n
	}
	return total
}
