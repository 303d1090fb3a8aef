package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"imgsync/internal/config"
	"imgsync/internal/fileutil"
	"imgsync/internal/logging"
	"imgsync/internal/transcode"
)

// Asset locates one mirrored image.
type Asset struct {
	URL        string
	Name       string
	Path       string
	PublicPath string
}

// Outcome describes how a URL was resolved.
type Outcome struct {
	Asset
	Reused      bool
	Transcoded  bool
	Bytes       int64
	ContentType string
	Duration    time.Duration
}

// Options configures a Store.
type Options struct {
	OutputDir  string
	PublicBase string
	Fetcher    Fetcher
	// Transcoder is nil when conversion is disabled.
	Transcoder transcode.Transcoder
	// Limiter paces network fetches. Reused assets never wait on it.
	Limiter Limiter
	Logger  *slog.Logger
}

// Limiter blocks until a request may proceed. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Store resolves URLs to local assets.
type Store struct {
	outputDir  string
	publicBase string
	fetcher    Fetcher
	transcoder transcode.Transcoder
	limiter    Limiter
	logger     *slog.Logger
}

// NewStore constructs a Store.
func NewStore(opts Options) *Store {
	return &Store{
		outputDir:  opts.OutputDir,
		publicBase: config.PublicImageBase(opts.PublicBase, ""),
		fetcher:    opts.Fetcher,
		transcoder: opts.Transcoder,
		limiter:    opts.Limiter,
		logger:     logging.NewComponentLogger(opts.Logger, "assets"),
	}
}

// NewFromConfig wires the HTTP fetcher and, when enabled, the ffmpeg transcoder.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	fetcher := NewHTTPFetcher(cfg.FetchTimeout(),
		WithUserAgent(cfg.Fetch.UserAgent),
		WithMaxBytes(cfg.Fetch.MaxBytes),
	)
	var tc transcode.Transcoder
	if cfg.Transcode.Enabled {
		ff, err := transcode.NewFFmpeg(cfg.Transcode.Format, cfg.Transcode.Quality, transcode.WithBinary(cfg.Transcode.FFmpegBinary))
		if err != nil {
			return nil, err
		}
		tc = ff
	}
	return NewStore(Options{
		OutputDir:  cfg.OutputDir(),
		PublicBase: cfg.PublicImageBase(),
		Fetcher:    fetcher,
		Transcoder: tc,
		Limiter:    NewRateLimiter(cfg.Fetch.RequestsPerSecond),
		Logger:     logger,
	}), nil
}

// NewRateLimiter returns a token bucket allowing requestsPerSecond fetches, or
// nil when the rate is zero (unlimited).
func NewRateLimiter(requestsPerSecond float64) Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := max(int(requestsPerSecond), 1)
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// OutputDir returns the directory assets are written to.
func (s *Store) OutputDir() string {
	return s.outputDir
}

// Locate computes where rawURL's asset lives without touching the disk.
func (s *Store) Locate(rawURL string) Asset {
	targetExt := ""
	if s.transcoder != nil {
		targetExt = s.transcoder.Extension()
	}
	name := FileName(rawURL, targetExt)
	return Asset{
		URL:        rawURL,
		Name:       name,
		Path:       filepath.Join(s.outputDir, name),
		PublicPath: s.publicBase + name,
	}
}

// Lookup reports whether a valid asset for rawURL already exists: a regular,
// non-empty file at the computed path.
func (s *Store) Lookup(rawURL string) (Asset, bool) {
	asset := s.Locate(rawURL)
	return asset, fileutil.IsNonEmptyFile(asset.Path)
}

// Resolve reuses an existing asset or fetches a new one.
func (s *Store) Resolve(ctx context.Context, rawURL string) (Outcome, error) {
	if asset, ok := s.Lookup(rawURL); ok {
		return s.reused(asset), nil
	}
	return s.Fetch(ctx, rawURL)
}

func (s *Store) reused(asset Asset) Outcome {
	outcome := Outcome{Asset: asset, Reused: true}
	if info, err := os.Stat(asset.Path); err == nil {
		outcome.Bytes = info.Size()
	}
	s.logger.Debug("asset reused",
		logging.String(logging.FieldURL, asset.URL),
		logging.String(logging.FieldAsset, asset.Path),
	)
	return outcome
}

// Fetch downloads rawURL unconditionally after waiting on the limiter, transcodes it when enabled, and
// writes it under the output directory. A failed write never leaves a partial
// file under the final name.
func (s *Store) Fetch(ctx context.Context, rawURL string) (Outcome, error) {
	start := time.Now()
	asset := s.Locate(rawURL)

	if s.fetcher == nil {
		return Outcome{}, fmt.Errorf("%w: no fetcher configured", ErrFetch)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Outcome{}, fmt.Errorf("%w: rate limit: %w", ErrFetch, err)
		}
	}
	payload, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Outcome{}, err
	}

	data := payload.Data
	transcoded := false
	if s.transcoder != nil {
		converted, err := s.transcoder.Transcode(ctx, data)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %w", ErrTranscode, err)
		}
		data = converted
		transcoded = true
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("%w: create output directory: %w", ErrWrite, err)
	}
	if err := fileutil.WriteFileAtomic(asset.Path, data, 0o644); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	outcome := Outcome{
		Asset:       asset,
		Transcoded:  transcoded,
		Bytes:       int64(len(data)),
		ContentType: payload.ContentType,
		Duration:    time.Since(start),
	}
	s.logger.Debug("asset fetched",
		logging.String(logging.FieldURL, rawURL),
		logging.String(logging.FieldAsset, asset.Path),
		logging.Int64("bytes", outcome.Bytes),
		logging.Bool("transcoded", transcoded),
		logging.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}
