package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize(baseDir string) error {
	if err := c.normalizePaths(baseDir); err != nil {
		return err
	}
	c.normalizeDiscovery()
	c.normalizeFetch()
	c.normalizeTranscode()
	if err := c.normalizeManifest(baseDir); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths(baseDir string) error {
	var err error
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		c.Paths.SourceDir = defaultSourceDir
	}
	if c.Paths.SourceDir, err = expandPathFrom(baseDir, strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PublicDir) == "" {
		c.Paths.PublicDir = defaultPublicDir
	}
	if c.Paths.PublicDir, err = expandPathFrom(baseDir, strings.TrimSpace(c.Paths.PublicDir)); err != nil {
		return fmt.Errorf("paths.public_dir: %w", err)
	}
	c.Paths.BasePath = strings.TrimSpace(c.Paths.BasePath)
	if c.Paths.BasePath == "" {
		c.Paths.BasePath = defaultBasePath
	}
	c.Paths.ImageSubDirName = strings.Trim(strings.TrimSpace(c.Paths.ImageSubDirName), "/")
	return nil
}

func (c *Config) normalizeDiscovery() {
	if len(c.Discovery.AcceptedFileExtensions) == 0 {
		c.Discovery.AcceptedFileExtensions = append([]string(nil), DefaultAcceptedFileExtensions...)
	}
	exts := make([]string, 0, len(c.Discovery.AcceptedFileExtensions))
	seen := make(map[string]struct{}, len(c.Discovery.AcceptedFileExtensions))
	for _, ext := range c.Discovery.AcceptedFileExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Discovery.AcceptedFileExtensions = exts

	keys := c.Discovery.MetadataKeys[:0]
	for _, key := range c.Discovery.MetadataKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	c.Discovery.MetadataKeys = keys

	patterns := c.Discovery.Exclude[:0]
	for _, pattern := range c.Discovery.Exclude {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	c.Discovery.Exclude = patterns
}

func (c *Config) normalizeFetch() {
	if c.Fetch.TimeoutMs == 0 {
		c.Fetch.TimeoutMs = defaultFetchTimeoutMs
	}
	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = defaultFetchConcurrency
	}
	if c.Fetch.MaxBytes == 0 {
		c.Fetch.MaxBytes = defaultFetchMaxBytes
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Transcode.Format)), ".")
	switch c.Transcode.Format {
	case "":
		c.Transcode.Format = defaultTranscodeFormat
	case "jpg":
		c.Transcode.Format = "jpeg"
	}
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeManifest(baseDir string) error {
	c.Manifest.Path = strings.TrimSpace(c.Manifest.Path)
	if c.Manifest.Path == "" {
		c.Manifest.Path = defaultManifestPath
	}
	var err error
	if c.Manifest.Path, err = expandPathFrom(baseDir, c.Manifest.Path); err != nil {
		return fmt.Errorf("manifest.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if value, ok := os.LookupEnv("IMGSYNC_DEBUG"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			c.Logging.DebugLogging = true
		}
	}
}
