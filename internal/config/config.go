package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ProjectConfigName is the file looked up in the working directory.
const ProjectConfigName = "imgsync.toml"

// Paths contains source, output, and public URL layout settings.
type Paths struct {
	SourceDir       string `toml:"source_dir"`
	PublicDir       string `toml:"public_dir"`
	BasePath        string `toml:"base_path"`
	ImageSubDirName string `toml:"image_sub_dir_name"`
}

// Discovery controls which documents are scanned and which header keys hold image URLs.
type Discovery struct {
	AcceptedFileExtensions []string `toml:"accepted_file_extensions"`
	MetadataKeys           []string `toml:"metadata_keys"`
	Exclude                []string `toml:"exclude"`
}

// Fetch contains HTTP download settings.
type Fetch struct {
	TimeoutMs         int     `toml:"fetch_timeout_ms"`
	Concurrency       int     `toml:"concurrency"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	MaxBytes          int64   `toml:"max_bytes"`
	UserAgent         string  `toml:"user_agent"`
}

// Transcode contains settings for converting downloaded images.
type Transcode struct {
	Enabled      bool   `toml:"convert_to_target_format"`
	Format       string `toml:"target_format"`
	Quality      int    `toml:"target_quality"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Manifest contains settings for the optional fetch history database.
type Manifest struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Watch contains settings for watch mode.
type Watch struct {
	DebounceMs int `toml:"debounce_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format       string `toml:"format"`
	Level        string `toml:"level"`
	DebugLogging bool   `toml:"debug_logging"`
}

// Config encapsulates all configuration values for imgsync.
//
// Configuration sections by subsystem:
//   - Paths: document root, public root, site base path, image folder name
//   - Discovery: accepted document extensions, header keys, exclusion globs
//   - Fetch: timeout, worker count, rate limit, size cap, user agent
//   - Transcode: target format conversion through ffmpeg
//   - Manifest: optional sqlite history of fetched assets
//   - Watch: debounce for watch mode
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Discovery Discovery `toml:"discovery"`
	Fetch     Fetch     `toml:"fetch"`
	Transcode Transcode `toml:"transcode"`
	Manifest  Manifest  `toml:"manifest"`
	Watch     Watch     `toml:"watch"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the user-level configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/imgsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Relative paths inside a config file resolve
// against the directory holding that file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	baseDir := ""
	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		baseDir = filepath.Dir(resolvedPath)
	}

	if err := cfg.normalize(baseDir); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(ProjectConfigName)
	if err != nil {
		return "", false, err
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return projectPath, false, nil
}

// OutputDir is the directory mirrored images are written to.
func (c *Config) OutputDir() string {
	return filepath.Join(c.Paths.PublicDir, c.Paths.ImageSubDirName)
}

// PublicImageBase is the URL prefix embedded in rewritten documents, e.g.
// "/docs/fetched-images/". It always starts and ends with a slash.
func (c *Config) PublicImageBase() string {
	return PublicImageBase(c.Paths.BasePath, c.Paths.ImageSubDirName)
}

// PublicImageBase joins a site base path and an image folder name into a public prefix.
func PublicImageBase(basePath, subDir string) string {
	base := strings.TrimSpace(basePath)
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	sub := strings.Trim(strings.TrimSpace(subDir), "/")
	joined := base + sub + "/"
	for strings.Contains(joined, "//") {
		joined = strings.ReplaceAll(joined, "//", "/")
	}
	return joined
}

// FetchTimeout returns the per-request timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutMs) * time.Millisecond
}

// DebounceDelay returns the watch mode debounce interval.
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// LogLevel returns the effective log level, honouring debug_logging.
func (c *Config) LogLevel() string {
	if c.Logging.DebugLogging {
		return "debug"
	}
	return c.Logging.Level
}

// EnsureDirectories creates the output directory. Failure here is reported to
// the caller, which may continue in a degraded state.
func (c *Config) EnsureDirectories() error {
	dir := c.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", dir, err)
	}
	if c.Manifest.Enabled && strings.TrimSpace(c.Manifest.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Manifest.Path), 0o755); err != nil {
			return fmt.Errorf("create manifest directory: %w", err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	return expandPathFrom("", pathValue)
}

func expandPathFrom(baseDir, pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	if baseDir != "" && !filepath.IsAbs(pathValue) {
		pathValue = filepath.Join(baseDir, pathValue)
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
