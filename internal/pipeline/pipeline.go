package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"imgsync/internal/assets"
	"imgsync/internal/config"
	"imgsync/internal/document"
	"imgsync/internal/extract"
	"imgsync/internal/frontmatter"
	"imgsync/internal/logging"
	"imgsync/internal/manifest"
	"imgsync/internal/rewrite"
	"imgsync/internal/scheduler"
)

// ErrLocked is returned when another process holds the output directory lock.
var ErrLocked = errors.New("another imgsync run holds the output directory lock")

// LockFileName is created inside the output directory while a run is active.
const LockFileName = ".imgsync.lock"

// Store is the asset store a pipeline resolves URLs against.
type Store interface {
	scheduler.Store
}

// Recorder persists run history.
type Recorder interface {
	RecordRun(ctx context.Context, run manifest.Run, fetches []manifest.Fetch) error
}

// Options controls a single run.
type Options struct {
	// DryRun performs discovery and asset lookups only: no network, no writes.
	DryRun bool
}

// Summary reports what a run did.
type Summary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	DryRun     bool          `json:"dry_run"`
	Documents  int           `json:"documents"`
	Discovered int           `json:"discovered"`
	Candidates int           `json:"candidates"`
	Fetched    int           `json:"fetched"`
	Reused     int           `json:"reused"`
	Failed     int           `json:"failed"`
	Mapped     int           `json:"mapped"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Bytes      int64         `json:"bytes"`
	Duration   time.Duration `json:"duration_ns"`
	// Pending lists URLs a dry run found without a local asset.
	Pending []string `json:"pending,omitempty"`
	// UpdatedDocuments lists the rewritten document paths.
	UpdatedDocuments []string `json:"updated_documents,omitempty"`
	// FailedURLs lists URLs that could not be resolved.
	FailedURLs []string `json:"failed_urls,omitempty"`
}

// Complete reports whether every discovered URL was mapped.
func (s Summary) Complete() bool {
	return s.Mapped >= s.Discovered
}

// Pipeline wires discovery, scheduling, and rewriting for one configuration.
type Pipeline struct {
	cfg       *config.Config
	store     Store
	scheduler *scheduler.Scheduler
	rewriter  *rewrite.Rewriter
	codec     document.Codec
	recorder  Recorder
	logger    *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	store    Store
	session  *scheduler.Session
	recorder Recorder
}

// WithStore overrides the asset store built from config.
func WithStore(store Store) Option {
	return func(o *pipelineOptions) { o.store = store }
}

// WithSession shares resolved URLs across runs in the same process.
func WithSession(session *scheduler.Session) Option {
	return func(o *pipelineOptions) { o.session = session }
}

// WithRecorder stores run history after each non-dry run.
func WithRecorder(recorder Recorder) Option {
	return func(o *pipelineOptions) { o.recorder = recorder }
}

// New constructs a Pipeline from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires config")
	}
	var o pipelineOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		store, err := assets.NewFromConfig(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("build asset store: %w", err)
		}
		o.store = store
	}
	return &Pipeline{
		cfg:   cfg,
		store: o.store,
		scheduler: scheduler.New(o.store, scheduler.Options{
			Concurrency: cfg.Fetch.Concurrency,
			Session:     o.session,
			Logger:      logger,
		}),
		rewriter: rewrite.New(cfg.Discovery.MetadataKeys),
		codec:    frontmatter.Codec{},
		recorder: o.recorder,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

type candidate struct {
	path string
}

// Run executes one pass. Per-URL and per-document failures are reported in
// the summary and logs; only lock contention and an unreadable source tree
// fail the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), StartedAt: time.Now(), DryRun: opts.DryRun}
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, p.logger)

	if !opts.DryRun {
		unlock, err := p.acquire(logger)
		if err != nil {
			return summary, err
		}
		defer unlock()
	}

	paths, err := Enumerate(p.cfg.Paths.SourceDir, p.cfg.Discovery.AcceptedFileExtensions, p.cfg.Discovery.Exclude)
	if err != nil {
		return summary, err
	}
	summary.Documents = len(paths)

	urls, candidates := p.discover(logger, paths, &summary)
	summary.Discovered = len(urls)
	summary.Candidates = len(candidates)
	logger.Info("discovery complete",
		logging.Int("documents", summary.Documents),
		logging.Int("urls", summary.Discovered),
		logging.Int("candidates", summary.Candidates),
	)

	if opts.DryRun {
		p.dryRun(urls, &summary)
		summary.Duration = time.Since(summary.StartedAt)
		p.logSummary(logger, summary)
		return summary, nil
	}

	var result scheduler.Result
	if len(urls) > 0 {
		result = p.scheduler.Run(ctx, urls.Sorted())
	} else {
		result = scheduler.Result{Mapping: scheduler.NewMapping()}
	}
	summary.Fetched = result.Fetched
	summary.Reused = result.Reused
	summary.Failed = result.Failed
	summary.Mapped = result.Mapping.Len()
	for _, outcome := range result.Outcomes {
		switch {
		case outcome.Err != nil:
			summary.FailedURLs = append(summary.FailedURLs, outcome.URL)
		case !outcome.Reused:
			summary.Bytes += outcome.Bytes
		}
	}

	if summary.Mapped > 0 {
		p.rewriteAll(logger, candidates, result.Mapping, &summary)
	} else {
		logger.Debug("mapping empty; skipping rewrite")
	}

	summary.Duration = time.Since(summary.StartedAt)
	p.record(ctx, logger, summary, result)
	p.logSummary(logger, summary)
	return summary, nil
}

func (p *Pipeline) acquire(logger *slog.Logger) (func(), error) {
	if err := p.cfg.EnsureDirectories(); err != nil {
		logging.ErrorWithContext(logger, "output directory unavailable", "output_dir_failed",
			logging.Error(err),
			logging.Alert("critical"),
			logging.String(logging.FieldErrorHint, "check paths.public_dir exists and is writable"),
		)
		return func() {}, nil
	}

	lockPath := filepath.Join(p.cfg.OutputDir(), LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release lock", logging.Error(err))
		}
	}, nil
}

func (p *Pipeline) discover(logger *slog.Logger, paths []string, summary *Summary) (extract.URLSet, []candidate) {
	global := extract.URLSet{}
	var candidates []candidate
	for _, path := range paths {
		doc, err := document.Load(path, p.codec)
		if err != nil {
			p.loadFailed(logger, path, err, summary)
			continue
		}
		found := extract.FromHeader(doc.Header, p.cfg.Discovery.MetadataKeys)
		found.Union(extract.FromBody(doc.Body))
		if len(found) == 0 {
			continue
		}
		global.Union(found)
		candidates = append(candidates, candidate{path: path})
		logger.Debug("document references remote images",
			logging.String(logging.FieldDocument, path),
			logging.Int("urls", len(found)),
		)
	}
	return global, candidates
}

func (p *Pipeline) loadFailed(logger *slog.Logger, path string, err error, summary *Summary) {
	switch {
	case errors.Is(err, document.ErrVanished):
		logger.Debug("document vanished", logging.String(logging.FieldDocument, path))
	case errors.Is(err, frontmatter.ErrMalformed):
		summary.Skipped++
		logging.ErrorWithContext(logger, "document header unreadable", "codec_failed",
			logging.String(logging.FieldDocument, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the YAML frontmatter"),
		)
	default:
		summary.Skipped++
		logging.WarnWithContext(logger, "document unreadable", "document_read_failed",
			logging.String(logging.FieldDocument, path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "document skipped"),
		)
	}
}

func (p *Pipeline) dryRun(urls extract.URLSet, summary *Summary) {
	for _, url := range urls.Sorted() {
		if _, ok := p.store.Lookup(url); ok {
			summary.Reused++
			summary.Mapped++
			continue
		}
		summary.Pending = append(summary.Pending, url)
	}
}

func (p *Pipeline) rewriteAll(logger *slog.Logger, candidates []candidate, mapping *scheduler.Mapping, summary *Summary) {
	for _, c := range candidates {
		updated, err := p.rewriteOne(c.path, mapping)
		switch {
		case err == nil:
		case errors.Is(err, document.ErrVanished) || errors.Is(err, os.ErrNotExist):
			logger.Debug("document vanished before rewrite", logging.String(logging.FieldDocument, c.path))
			continue
		default:
			p.loadFailed(logger, c.path, err, summary)
			continue
		}
		if updated {
			summary.Updated++
			summary.UpdatedDocuments = append(summary.UpdatedDocuments, c.path)
			logger.Info("document updated", logging.String(logging.FieldDocument, c.path))
		}
	}
}

// rewriteOne re-reads the document so edits made during the fetch phase are
// kept, and writes only when the serialized text differs.
func (p *Pipeline) rewriteOne(path string, mapping *scheduler.Mapping) (bool, error) {
	doc, err := document.Load(path, p.codec)
	if err != nil {
		return false, err
	}
	result := p.rewriter.Rewrite(doc.Header, doc.Body, mapping)
	if !result.Changed() {
		return false, nil
	}
	text, changed, err := doc.Render(p.codec, result.Header, result.Body)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := doc.Save(text); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, summary Summary, result scheduler.Result) {
	if p.recorder == nil {
		return
	}
	fetches := make([]manifest.Fetch, 0, result.Fetched)
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil || outcome.Reused {
			continue
		}
		fetches = append(fetches, manifest.Fetch{
			URL:         outcome.URL,
			FileName:    outcome.Asset.Name,
			Bytes:       outcome.Bytes,
			ContentType: outcome.Asset.ContentType,
			Transcoded:  outcome.Transcoded,
			FetchedAt:   summary.StartedAt.Add(outcome.Duration),
			RunID:       summary.RunID,
		})
	}
	run := manifest.Run{
		RunID:            summary.RunID,
		StartedAt:        summary.StartedAt,
		Duration:         summary.Duration,
		Discovered:       summary.Discovered,
		Fetched:          summary.Fetched,
		Reused:           summary.Reused,
		Failed:           summary.Failed,
		DocumentsUpdated: summary.Updated,
	}
	if err := p.recorder.RecordRun(ctx, run, fetches); err != nil {
		logging.WarnWithContext(logger, "manifest not updated", "manifest_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "fetch history incomplete"),
		)
	}
}

func (p *Pipeline) logSummary(logger *slog.Logger, summary Summary) {
	logger.Info("run complete",
		logging.Bool("dry_run", summary.DryRun),
		logging.Int("discovered", summary.Discovered),
		logging.Int("fetched", summary.Fetched),
		logging.Int("reused", summary.Reused),
		logging.Int("failed", summary.Failed),
		logging.Int("mapped", summary.Mapped),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("duration", summary.Duration),
	)
	if !summary.DryRun && !summary.Complete() {
		logging.WarnWithContext(logger, "not every discovered image was mapped", "mapping_incomplete",
			logging.Int("discovered", summary.Discovered),
			logging.Int("mapped", summary.Mapped),
			logging.String(logging.FieldErrorHint, "rerun after fixing the failed URLs"),
			logging.String(logging.FieldImpact, "unmapped references keep their remote URLs"),
		)
	}
}
