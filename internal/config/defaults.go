package config

const (
	defaultSourceDir        = "docs"
	defaultPublicDir        = "docs/.vuepress/public"
	defaultBasePath         = "/"
	defaultImageSubDirName  = "fetched-images"
	defaultFetchTimeoutMs   = 15000
	defaultFetchConcurrency = 8
	defaultFetchMaxBytes    = 50 << 20
	defaultUserAgent        = "imgsync/dev"
	defaultTranscodeEnabled = true
	defaultTranscodeFormat  = "webp"
	defaultTranscodeQuality = 80
	defaultFFmpegBinary     = "ffmpeg"
	defaultManifestPath     = "~/.local/share/imgsync/manifest.db"
	defaultWatchDebounceMs  = 500
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// DefaultAcceptedFileExtensions lists the document types scanned when none are configured.
var DefaultAcceptedFileExtensions = []string{".md", ".html"}

// DefaultMetadataKeys lists the frontmatter keys that commonly hold image URLs.
var DefaultMetadataKeys = []string{
	"cover",
	"banner",
	"thumbnail",
	"image",
	"feature",
	"heroImage",
	"ogImage",
	"twitterImage",
	"galleryImages",
	"images",
	"photos",
}

// DefaultExclude lists glob patterns skipped during document enumeration.
var DefaultExclude = []string{
	"**/node_modules/**",
	"**/.vuepress/dist/**",
	"**/.git/**",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceDir:       defaultSourceDir,
			PublicDir:       defaultPublicDir,
			BasePath:        defaultBasePath,
			ImageSubDirName: defaultImageSubDirName,
		},
		Discovery: Discovery{
			AcceptedFileExtensions: append([]string(nil), DefaultAcceptedFileExtensions...),
			MetadataKeys:           append([]string(nil), DefaultMetadataKeys...),
			Exclude:                append([]string(nil), DefaultExclude...),
		},
		Fetch: Fetch{
			TimeoutMs:   defaultFetchTimeoutMs,
			Concurrency: defaultFetchConcurrency,
			MaxBytes:    defaultFetchMaxBytes,
			UserAgent:   defaultUserAgent,
		},
		Transcode: Transcode{
			Enabled:      defaultTranscodeEnabled,
			Format:       defaultTranscodeFormat,
			Quality:      defaultTranscodeQuality,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Manifest: Manifest{
			Path: defaultManifestPath,
		},
		Watch: Watch{
			DebounceMs: defaultWatchDebounceMs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
