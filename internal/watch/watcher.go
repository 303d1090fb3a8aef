package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"imgsync/internal/logging"
	"imgsync/internal/pipeline"
)

const defaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Root       string
	Extensions []string
	Exclude    []string
	Debounce   time.Duration
	Logger     *slog.Logger
}

// ChangeFunc is called with the sorted absolute paths whose content changed.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher observes a source tree recursively.
type Watcher struct {
	root       string
	extensions map[string]struct{}
	exclude    []string
	debounce   time.Duration
	fsw        *fsnotify.Watcher
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	hashes  map[string]string
}

// New creates a watcher over opts.Root. Call Run to start receiving changes.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	extensions := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extensions[strings.ToLower(ext)] = struct{}{}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		root:       opts.Root,
		extensions: extensions,
		exclude:    append([]string(nil), opts.Exclude...),
		debounce:   debounce,
		fsw:        fsw,
		logger:     logging.NewComponentLogger(opts.Logger, "watch"),
		pending:    make(map[string]struct{}),
		hashes:     make(map[string]string),
	}, nil
}

// Prime records the current content hash of paths. Changes that leave a
// file's content equal to its primed hash are ignored.
func (w *Watcher) Prime(paths []string) {
	for _, path := range paths {
		hash, err := contentHash(path)
		w.mu.Lock()
		if err != nil {
			delete(w.hashes, path)
		} else {
			w.hashes[path] = hash
		}
		w.mu.Unlock()
	}
}

// Run watches until ctx is cancelled, invoking onChange after each quiet
// period that follows at least one content change. onChange runs on the
// watcher goroutine, so changes seen while it runs are batched into the next call.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes",
		logging.String("root", w.root),
		logging.Duration("debounce", w.debounce),
	)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(event) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some changes may be missed until the next event"),
			)
		case <-timer.C:
			if changed := w.flush(); len(changed) > 0 {
				w.logger.Debug("sources changed", logging.Int("documents", len(changed)))
				onChange(ctx, changed)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) bool {
	path := event.Name
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.logger.Warn("failed to watch new directory", logging.String("path", path), logging.Error(err))
			}
			return false
		}
	}
	if _, ok := w.extensions[strings.ToLower(filepath.Ext(path))]; !ok {
		return false
	}
	if w.excluded(path) {
		return false
	}
	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()
	return true
}

// flush returns pending paths whose content differs from the last seen hash.
// Removed files are forgotten without triggering a run.
func (w *Watcher) flush() []string {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	var changed []string
	for path := range pending {
		hash, err := contentHash(path)
		w.mu.Lock()
		if err != nil {
			delete(w.hashes, path)
			w.mu.Unlock()
			continue
		}
		if previous, ok := w.hashes[path]; ok && previous == hash {
			w.mu.Unlock()
			continue
		}
		w.hashes[path] = hash
		w.mu.Unlock()
		changed = append(changed, path)
	}
	sort.Strings(changed)
	return changed
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != w.root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.dirExcluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", logging.String("path", path), logging.Error(err))
		}
		return nil
	})
}

// excluded applies the same exclude globs document enumeration uses.
func (w *Watcher) excluded(path string) bool {
	rel, ok := w.rel(path)
	return ok && pipeline.Excluded(rel, w.exclude)
}

// dirExcluded reports whether every file below dir would be excluded, tested
// with a placeholder child so "**/name/**" style globs prune the directory.
func (w *Watcher) dirExcluded(dir string) bool {
	rel, ok := w.rel(dir)
	return ok && pipeline.Excluded(rel+"/"+dirPlaceholder, w.exclude)
}

const dirPlaceholder = "x"

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func contentHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
