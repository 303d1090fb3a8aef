package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgsync/internal/config"
)

func TestLoadDefaultsWhenNoConfigPresent(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	workDir := t.TempDir()
	t.Chdir(workDir)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}
	if resolved != filepath.Join(workDir, config.ProjectConfigName) {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.SourceDir != filepath.Join(workDir, "docs") {
		t.Fatalf("unexpected source dir: %q", cfg.Paths.SourceDir)
	}
	if cfg.OutputDir() != filepath.Join(workDir, "docs", ".vuepress", "public", "fetched-images") {
		t.Fatalf("unexpected output dir: %q", cfg.OutputDir())
	}
	if cfg.PublicImageBase() != "/fetched-images/" {
		t.Fatalf("unexpected public base: %q", cfg.PublicImageBase())
	}
	if !cfg.Transcode.Enabled || cfg.Transcode.Format != "webp" || cfg.Transcode.Quality != 80 {
		t.Fatalf("unexpected transcode defaults: %+v", cfg.Transcode)
	}
	if cfg.FetchTimeout().Milliseconds() != 15000 {
		t.Fatalf("unexpected fetch timeout: %s", cfg.FetchTimeout())
	}
	if len(cfg.Discovery.MetadataKeys) != len(config.DefaultMetadataKeys) {
		t.Fatalf("unexpected metadata keys: %v", cfg.Discovery.MetadataKeys)
	}
	if cfg.Manifest.Path != filepath.Join(tempHome, ".local", "share", "imgsync", "manifest.db") {
		t.Fatalf("unexpected manifest path: %q", cfg.Manifest.Path)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(cfg.OutputDir()); err != nil || !info.IsDir() {
		t.Fatalf("expected output dir to exist: %v", err)
	}
}

func TestLoadCustomPathResolvesRelativeToConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "site.toml")
	content := `
[paths]
source_dir = "content"
public_dir = "static"
base_path = "docs"
image_sub_dir_name = "/remote/"

[discovery]
accepted_file_extensions = ["MD", ".markdown", ".md"]
metadata_keys = [" cover ", ""]

[fetch]
fetch_timeout_ms = 2500
concurrency = 3

[transcode]
convert_to_target_format = false
target_format = "JPG"
target_quality = 60

[logging]
format = "JSON"
debug_logging = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.SourceDir != filepath.Join(dir, "content") {
		t.Fatalf("unexpected source dir: %q", cfg.Paths.SourceDir)
	}
	if cfg.OutputDir() != filepath.Join(dir, "static", "remote") {
		t.Fatalf("unexpected output dir: %q", cfg.OutputDir())
	}
	if cfg.PublicImageBase() != "/docs/remote/" {
		t.Fatalf("unexpected public base: %q", cfg.PublicImageBase())
	}
	want := []string{".md", ".markdown"}
	if strings.Join(cfg.Discovery.AcceptedFileExtensions, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected extensions: %v", cfg.Discovery.AcceptedFileExtensions)
	}
	if len(cfg.Discovery.MetadataKeys) != 1 || cfg.Discovery.MetadataKeys[0] != "cover" {
		t.Fatalf("unexpected metadata keys: %v", cfg.Discovery.MetadataKeys)
	}
	if cfg.Fetch.Concurrency != 3 || cfg.FetchTimeout().Milliseconds() != 2500 {
		t.Fatalf("unexpected fetch settings: %+v", cfg.Fetch)
	}
	if cfg.Transcode.Enabled || cfg.Transcode.Format != "jpeg" {
		t.Fatalf("unexpected transcode settings: %+v", cfg.Transcode)
	}
	if cfg.Logging.Format != "json" || cfg.LogLevel() != "debug" {
		t.Fatalf("unexpected logging settings: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[paths]\nsource_directory = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"quality", func(c *config.Config) { c.Transcode.Quality = 0 }, "target_quality"},
		{"format", func(c *config.Config) { c.Transcode.Format = "gif" }, "target_format"},
		{"concurrency", func(c *config.Config) { c.Fetch.Concurrency = 0 }, "concurrency"},
		{"subdir", func(c *config.Config) { c.Paths.ImageSubDirName = "" }, "image_sub_dir_name"},
		{"subdir traversal", func(c *config.Config) { c.Paths.ImageSubDirName = "../x" }, "image_sub_dir_name"},
		{"rate", func(c *config.Config) { c.Fetch.RequestsPerSecond = -1 }, "requests_per_second"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.SourceDir = "/src"
			cfg.Paths.PublicDir = "/public"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestPublicImageBaseNormalization(t *testing.T) {
	tests := []struct {
		base, sub, want string
	}{
		{"/", "fetched-images", "/fetched-images/"},
		{"", "fetched-images", "/fetched-images/"},
		{"docs", "img", "/docs/img/"},
		{"/docs/", "/img/", "/docs/img/"},
		{"//docs//", "img", "/docs/img/"},
	}
	for _, tt := range tests {
		if got := config.PublicImageBase(tt.base, tt.sub); got != tt.want {
			t.Fatalf("PublicImageBase(%q, %q) = %q, want %q", tt.base, tt.sub, got, tt.want)
		}
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "imgsync.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Paths.ImageSubDirName != "fetched-images" {
		t.Fatalf("unexpected sample sub dir: %q", cfg.Paths.ImageSubDirName)
	}
}

func TestDebugEnvForcesDebugLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IMGSYNC_DEBUG", "1")
	t.Chdir(t.TempDir())
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel() != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.LogLevel())
	}
}
