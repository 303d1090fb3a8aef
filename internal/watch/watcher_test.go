package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"imgsync/internal/pipeline"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	w, err := New(Options{
		Root:       root,
		Extensions: []string{".md"},
		Exclude:    []string{"**/drafts/**"},
		Debounce:   20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return w, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFlushFiltersUnchangedContent(t *testing.T) {
	w, root := newTestWatcher(t)
	defer w.fsw.Close()
	path := filepath.Join(root, "page.md")
	writeFile(t, path, "one")

	w.Prime([]string{path})
	w.pending[path] = struct{}{}
	if changed := w.flush(); len(changed) != 0 {
		t.Fatalf("primed content must not count as a change, got %v", changed)
	}

	writeFile(t, path, "two")
	w.pending[path] = struct{}{}
	if changed := w.flush(); len(changed) != 1 || changed[0] != path {
		t.Fatalf("expected change for %s, got %v", path, changed)
	}

	w.pending[path] = struct{}{}
	if changed := w.flush(); len(changed) != 0 {
		t.Fatalf("second flush of same content should be empty, got %v", changed)
	}
}

func TestFlushForgetsRemovedFiles(t *testing.T) {
	w, root := newTestWatcher(t)
	defer w.fsw.Close()
	path := filepath.Join(root, "page.md")
	writeFile(t, path, "one")
	w.Prime([]string{path})
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.pending[path] = struct{}{}
	if changed := w.flush(); len(changed) != 0 {
		t.Fatalf("removed file must not trigger, got %v", changed)
	}
	if _, ok := w.hashes[path]; ok {
		t.Fatal("removed file hash should be forgotten")
	}
}

func TestExcluded(t *testing.T) {
	w, root := newTestWatcher(t)
	defer w.fsw.Close()
	if !w.excluded(filepath.Join(root, "drafts", "a.md")) {
		t.Fatal("expected drafts file excluded")
	}
	if w.excluded(filepath.Join(root, "guide", "a.md")) {
		t.Fatal("guide file should not be excluded")
	}
}

func TestRunTriggersOnChange(t *testing.T) {
	w, root := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) {
			changes <- changed
		})
	}()

	path := filepath.Join(root, "page.md")
	deadline := time.After(5 * time.Second)
	for i := 0; ; i++ {
		// Keep writing until the watcher has registered and reports the change.
		writeFile(t, path, "content "+string(rune('a'+i%26)))
		select {
		case changed := <-changes:
			if len(changed) != 1 || changed[0] != path {
				t.Fatalf("unexpected change set %v", changed)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for change notification")
		}
	}
}

func TestWatchedTreeMatchesEnumeration(t *testing.T) {
	w, root := newTestWatcher(t)
	defer w.fsw.Close()
	writeFile(t, filepath.Join(root, ".vuepress", "components.md"), "x")
	writeFile(t, filepath.Join(root, "guide", "a.md"), "x")
	writeFile(t, filepath.Join(root, "drafts", "wip.md"), "x")

	if err := w.addRecursive(root); err != nil {
		t.Fatalf("addRecursive returned error: %v", err)
	}
	watched := map[string]bool{}
	for _, dir := range w.fsw.WatchList() {
		watched[dir] = true
	}
	for _, dir := range []string{root, filepath.Join(root, ".vuepress"), filepath.Join(root, "guide")} {
		if !watched[dir] {
			t.Fatalf("expected %s watched, got %v", dir, w.fsw.WatchList())
		}
	}
	if watched[filepath.Join(root, "drafts")] {
		t.Fatal("excluded directory should not be watched")
	}

	docs, err := pipeline.Enumerate(root, []string{".md"}, w.exclude)
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 enumerated documents, got %v", docs)
	}
	for _, doc := range docs {
		if w.excluded(doc) || !watched[filepath.Dir(doc)] {
			t.Fatalf("enumerated document %s is not watched", doc)
		}
	}
}
