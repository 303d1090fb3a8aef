package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"imgsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test.
// Transcoding is disabled so tests do not depend on ffmpeg.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SourceDir = filepath.Join(base, "docs")
	cfgVal.Paths.PublicDir = filepath.Join(base, "docs", ".vuepress", "public")
	cfgVal.Paths.BasePath = "/"
	cfgVal.Transcode.Enabled = false
	cfgVal.Manifest.Path = filepath.Join(base, "state", "manifest.db")
	cfgVal.Fetch.TimeoutMs = 2000
	cfgVal.Fetch.Concurrency = 4

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(builder.cfg.Paths.SourceDir, 0o755); err != nil {
		t.Fatalf("mkdir source dir: %v", err)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBasePath sets the public site base path.
func WithBasePath(base string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.BasePath = base
	}
}

// WithTranscode enables conversion through the given ffmpeg binary.
func WithTranscode(binary, format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcode.Enabled = true
		b.cfg.Transcode.FFmpegBinary = binary
		b.cfg.Transcode.Format = format
	}
}

// WithManifest enables the fetch manifest.
func WithManifest() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Manifest.Enabled = true
	}
}

// WithStubbedFFmpeg writes an ffmpeg stub that copies stdin to stdout with a
// "converted:" prefix, and points the config at it.
func WithStubbedFFmpeg() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "ffmpeg")
		script := []byte("#!/bin/sh\nprintf 'converted:'\ncat\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write ffmpeg stub: %v", err)
		}
		b.cfg.Transcode.Enabled = true
		b.cfg.Transcode.FFmpegBinary = target
		b.cfg.Transcode.Format = "webp"
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceDir)
}
