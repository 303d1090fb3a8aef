package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"imgsync/internal/config"
)

// WriteDocument writes content to rel under the configured source directory
// and returns the absolute path.
func WriteDocument(t testing.TB, cfg *config.Config, rel, content string) string {
	t.Helper()

	path := filepath.Join(cfg.Paths.SourceDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
