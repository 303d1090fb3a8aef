package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"imgsync/internal/assets"
	"imgsync/internal/logging"
)

// Store is the asset store the scheduler resolves URLs against.
type Store interface {
	Lookup(url string) (assets.Asset, bool)
	Resolve(ctx context.Context, url string) (assets.Outcome, error)
}

// Outcome is the per-URL result of a run.
type Outcome struct {
	URL        string
	PublicPath string
	Reused     bool
	Session    bool
	Transcoded bool
	Bytes      int64
	Duration   time.Duration
	Err        error
	Asset      assets.Outcome
}

// Result summarizes a scheduler run.
type Result struct {
	Mapping  *Mapping
	Outcomes []Outcome
	Fetched  int
	Reused   int
	Failed   int
}

// Options configures a Scheduler.
type Options struct {
	Concurrency int
	Session     *Session
	Logger      *slog.Logger
}

// Scheduler runs one resolve task per distinct URL.
type Scheduler struct {
	store       Store
	concurrency int
	session     *Session
	logger      *slog.Logger
}

// New constructs a Scheduler over store.
func New(store Store, opts Options) *Scheduler {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		store:       store,
		concurrency: concurrency,
		session:     opts.Session,
		logger:      logging.NewComponentLogger(opts.Logger, "scheduler"),
	}
}

// Run resolves every distinct URL in urls. It waits for all tasks before
// returning and never fails as a whole; per-URL errors are in Outcomes.
func (s *Scheduler) Run(ctx context.Context, urls []string) Result {
	unique := dedupe(urls)
	outcomes := make([]Outcome, len(unique))
	logger := logging.WithContext(ctx, s.logger)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, url := range unique {
		g.Go(func() error {
			outcomes[i] = s.resolve(ctx, logger, url)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Mapping: NewMapping(), Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			result.Failed++
			continue
		}
		result.Mapping.Insert(outcome.URL, outcome.PublicPath)
		if outcome.Reused {
			result.Reused++
		} else {
			result.Fetched++
		}
	}
	return result
}

func (s *Scheduler) resolve(ctx context.Context, logger *slog.Logger, url string) Outcome {
	if publicPath, ok := s.session.get(url); ok {
		if asset, onDisk := s.store.Lookup(url); onDisk && asset.PublicPath == publicPath {
			return Outcome{URL: url, PublicPath: publicPath, Reused: true, Session: true}
		}
		s.session.evict(url)
		logger.Debug("session entry stale", logging.String(logging.FieldURL, url))
	}

	start := time.Now()
	resolved, err := s.store.Resolve(ctx, url)
	if err != nil {
		return s.failed(logger, url, err)
	}
	s.session.put(url, resolved.PublicPath)
	if !resolved.Reused {
		logger.Info("asset fetched",
			logging.String(logging.FieldURL, url),
			logging.String(logging.FieldAsset, resolved.Path),
			logging.Int64("bytes", resolved.Bytes),
		)
	}
	return Outcome{
		URL:        url,
		PublicPath: resolved.PublicPath,
		Reused:     resolved.Reused,
		Transcoded: resolved.Transcoded,
		Bytes:      resolved.Bytes,
		Duration:   time.Since(start),
		Asset:      resolved,
	}
}

func (s *Scheduler) failed(logger *slog.Logger, url string, err error) Outcome {
	logging.WarnWithContext(logger, "asset unavailable", "fetch_failed",
		logging.String(logging.FieldURL, url),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the URL is reachable and serves an image"),
		logging.String(logging.FieldImpact, "references to this URL are left unchanged"),
	)
	return Outcome{URL: url, Err: err}
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}
