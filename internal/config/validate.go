package config

import (
	"errors"
	"fmt"
	"strings"
)

// SupportedTargetFormats lists the encodings the transcoder can produce.
var SupportedTargetFormats = []string{"webp", "jpeg", "png"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.SourceDir == "" {
		return errors.New("paths.source_dir must be set")
	}
	if c.Paths.PublicDir == "" {
		return errors.New("paths.public_dir must be set")
	}
	if c.Paths.ImageSubDirName == "" {
		return errors.New("paths.image_sub_dir_name must be set")
	}
	if strings.ContainsAny(c.Paths.ImageSubDirName, `\`) || strings.Contains(c.Paths.ImageSubDirName, "..") {
		return fmt.Errorf("paths.image_sub_dir_name %q must be a plain relative folder name", c.Paths.ImageSubDirName)
	}
	if strings.Contains(c.Paths.BasePath, "://") {
		return fmt.Errorf("paths.base_path %q must be a path, not a URL", c.Paths.BasePath)
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if len(c.Discovery.AcceptedFileExtensions) == 0 {
		return errors.New("discovery.accepted_file_extensions must list at least one extension")
	}
	for _, ext := range c.Discovery.AcceptedFileExtensions {
		if ext == "." || strings.ContainsAny(ext, `/\*`) {
			return fmt.Errorf("discovery.accepted_file_extensions: invalid extension %q", ext)
		}
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutMs < 0 {
		return errors.New("fetch.fetch_timeout_ms must be positive")
	}
	if c.Fetch.Concurrency < 1 {
		return errors.New("fetch.concurrency must be at least 1")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return errors.New("fetch.requests_per_second must be zero (unlimited) or positive")
	}
	if c.Fetch.MaxBytes < 0 {
		return errors.New("fetch.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	supported := false
	for _, format := range SupportedTargetFormats {
		if c.Transcode.Format == format {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("transcode.target_format %q is not supported (use one of %s)", c.Transcode.Format, strings.Join(SupportedTargetFormats, ", "))
	}
	if c.Transcode.Quality < 1 || c.Transcode.Quality > 100 {
		return errors.New("transcode.target_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.DebounceMs < 0 {
		return errors.New("watch.debounce_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported (use debug, info, warn, or error)", c.Logging.Level)
	}
	return nil
}
