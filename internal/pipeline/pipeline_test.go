package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"imgsync/internal/assets"
	"imgsync/internal/config"
	"imgsync/internal/logging"
	"imgsync/internal/manifest"
	"imgsync/internal/pipeline"
	"imgsync/internal/scheduler"
	"imgsync/internal/testsupport"
)

func newPipeline(t *testing.T, cfg *config.Config, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

func publicPath(cfg *config.Config, url, ext string) string {
	return cfg.PublicImageBase() + assets.FileName(url, ext)
}

func TestRunMirrorsAndRewrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	cover := server.ImageURL("/cover.png")
	inline := server.ImageURL("/inline.jpg")
	binding := server.ImageURL("/bound.gif")
	missing := server.ImageURL("/missing.png")

	page := testsupport.WriteDocument(t, cfg, "guide/page.md", "---\n"+
		"title: Guide\n"+
		"cover: "+cover+"\n"+
		"---\n"+
		"![inline]("+inline+")\n"+
		"<img src=\""+inline+"\" alt=\"again\">\n"+
		"<Card :src=\""+binding+"\" />\n"+
		"![gone]("+missing+")\n"+
		"![local](/images/local.png)\n")
	plain := testsupport.WriteDocument(t, cfg, "plain.md", "# No images\n\nvisit "+cover+"\n")
	plainBefore := testsupport.ReadFile(t, plain)

	summary, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Documents != 2 || summary.Candidates != 1 {
		t.Fatalf("unexpected document counts %+v", summary)
	}
	if summary.Discovered != 4 || summary.Fetched != 3 || summary.Failed != 1 || summary.Mapped != 3 || summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Complete() {
		t.Fatal("summary with a failed URL must not be complete")
	}
	if len(summary.FailedURLs) != 1 || summary.FailedURLs[0] != missing {
		t.Fatalf("unexpected failed URLs %v", summary.FailedURLs)
	}

	got := testsupport.ReadFile(t, page)
	want := "---\n" +
		"title: Guide\n" +
		"cover: " + publicPath(cfg, cover, "") + "\n" +
		"---\n" +
		"![inline](" + publicPath(cfg, inline, "") + ")\n" +
		"<img src=\"" + publicPath(cfg, inline, "") + "\" alt=\"again\">\n" +
		"<Card :src=\"" + publicPath(cfg, binding, "") + "\" />\n" +
		"![gone](" + missing + ")\n" +
		"![local](/images/local.png)\n"
	if got != want {
		t.Fatalf("unexpected rewritten document:\n%s\nwant:\n%s", got, want)
	}

	if testsupport.ReadFile(t, plain) != plainBefore {
		t.Fatal("document without image references must be untouched")
	}

	asset := filepath.Join(cfg.OutputDir(), assets.FileName(inline, ""))
	if data := testsupport.ReadFile(t, asset); data != "image:/inline.jpg" {
		t.Fatalf("unexpected asset content %q", data)
	}
	if server.Requests("/inline.jpg") != 1 {
		t.Fatalf("expected one request for a URL used twice, got %d", server.Requests("/inline.jpg"))
	}
}

func TestSecondRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	page := testsupport.WriteDocument(t, cfg, "page.md", "![a]("+server.ImageURL("/a.png")+")\n")

	if _, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	afterFirst := testsupport.ReadFile(t, page)
	info, err := os.Stat(page)
	if err != nil {
		t.Fatal(err)
	}
	requests := server.TotalRequests()

	summary, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Discovered != 0 || summary.Updated != 0 {
		t.Fatalf("rewritten document should have nothing left to do, got %+v", summary)
	}
	if server.TotalRequests() != requests {
		t.Fatal("second run must not hit the network")
	}
	if testsupport.ReadFile(t, page) != afterFirst {
		t.Fatal("second run changed the document")
	}
	after, err := os.Stat(page)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(info.ModTime()) {
		t.Fatal("second run rewrote an unchanged document")
	}
}

func TestExistingAssetIsReusedForNewDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	url := server.ImageURL("/shared.png")
	testsupport.WriteDocument(t, cfg, "one.md", "![a]("+url+")\n")

	if _, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	two := testsupport.WriteDocument(t, cfg, "two.md", "![b]("+url+")\n")

	summary, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Reused != 1 || summary.Fetched != 0 || server.Requests("/shared.png") != 1 {
		t.Fatalf("expected reuse, got %+v requests=%d", summary, server.Requests("/shared.png"))
	}
	if got := testsupport.ReadFile(t, two); got != "![b]("+publicPath(cfg, url, "")+")\n" {
		t.Fatalf("unexpected document %q", got)
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	content := "![a](" + server.ImageURL("/a.png") + ")\n"
	page := testsupport.WriteDocument(t, cfg, "page.md", content)

	summary, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !summary.DryRun || summary.Discovered != 1 || len(summary.Pending) != 1 || summary.Updated != 0 {
		t.Fatalf("unexpected dry-run summary %+v", summary)
	}
	if server.TotalRequests() != 0 {
		t.Fatal("dry run must not fetch")
	}
	if testsupport.ReadFile(t, page) != content {
		t.Fatal("dry run must not rewrite documents")
	}
	if _, err := os.Stat(cfg.OutputDir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("dry run must not create the output directory")
	}
}

func TestRunFailsWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.OutputDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	holder := flock.New(filepath.Join(cfg.OutputDir(), pipeline.LockFileName))
	ok, err := holder.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}
	defer holder.Unlock() //nolint:errcheck

	_, err = newPipeline(t, cfg).Run(context.Background(), pipeline.Options{})
	if !errors.Is(err, pipeline.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestMalformedDocumentIsSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	bad := "---\ncover: [unclosed\n---\n![a](" + server.ImageURL("/bad.png") + ")\n"
	badPath := testsupport.WriteDocument(t, cfg, "bad.md", bad)
	good := testsupport.WriteDocument(t, cfg, "good.md", "![a]("+server.ImageURL("/good.png")+")\n")

	summary, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Skipped != 1 || summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if testsupport.ReadFile(t, badPath) != bad {
		t.Fatal("malformed document must be left alone")
	}
	if server.Requests("/bad.png") != 0 {
		t.Fatal("URLs in a skipped document must not be fetched")
	}
	if strings.Contains(testsupport.ReadFile(t, good), server.URL) {
		t.Fatal("valid document should have been rewritten")
	}
}

func TestRunTranscodesWithFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg(), testsupport.WithBasePath("/docs/"))
	server := testsupport.NewImageServer(t)
	url := server.ImageURL("/photo.png")
	page := testsupport.WriteDocument(t, cfg, "page.md", "![p]("+url+")\n")

	if _, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	name := assets.FileName(url, ".webp")
	if data := testsupport.ReadFile(t, filepath.Join(cfg.OutputDir(), name)); data != "converted:image:/photo.png" {
		t.Fatalf("unexpected transcoded asset %q", data)
	}
	if got := testsupport.ReadFile(t, page); got != "![p](/docs/fetched-images/"+name+")\n" {
		t.Fatalf("unexpected document %q", got)
	}
}

type memoryRecorder struct {
	runs    []manifest.Run
	fetches []manifest.Fetch
}

func (m *memoryRecorder) RecordRun(_ context.Context, run manifest.Run, fetches []manifest.Fetch) error {
	m.runs = append(m.runs, run)
	m.fetches = append(m.fetches, fetches...)
	return nil
}

func TestRunRecordsManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	url := server.ImageURL("/a.png")
	testsupport.WriteDocument(t, cfg, "page.md", "![a]("+url+")\n")

	recorder := &memoryRecorder{}
	summary, err := newPipeline(t, cfg, pipeline.WithRecorder(recorder)).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recorder.runs) != 1 || recorder.runs[0].RunID != summary.RunID {
		t.Fatalf("expected run recorded, got %+v", recorder.runs)
	}
	if len(recorder.fetches) != 1 || recorder.fetches[0].URL != url || recorder.fetches[0].FileName != assets.FileName(url, "") {
		t.Fatalf("unexpected fetch records %+v", recorder.fetches)
	}
}

func TestSessionSkipsLookupsAcrossRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	url := server.ImageURL("/a.png")
	session := scheduler.NewSession()
	p := newPipeline(t, cfg, pipeline.WithSession(session))

	testsupport.WriteDocument(t, cfg, "one.md", "![a]("+url+")\n")
	if _, err := p.Run(context.Background(), pipeline.Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	testsupport.WriteDocument(t, cfg, "two.md", "![a]("+url+")\n")
	summary, err := p.Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if session.Len() != 1 || summary.Reused != 1 || server.TotalRequests() != 1 {
		t.Fatalf("expected session reuse, summary=%+v requests=%d", summary, server.TotalRequests())
	}
}

func TestOutputDirFailureContinues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.PublicDir = blocker
	server := testsupport.NewImageServer(t)
	content := "![a](" + server.ImageURL("/a.png") + ")\n"
	page := testsupport.WriteDocument(t, cfg, "page.md", content)

	summary, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Mapped != 0 || summary.Updated != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if testsupport.ReadFile(t, page) != content {
		t.Fatal("document must keep remote URLs when nothing is mapped")
	}
}

func TestScanReportsReferences(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteDocument(t, cfg, "page.md", "---\nbanner: https://e.com/b.png\n---\n<img src=\"https://e.com/i.png\">\n")

	report, err := newPipeline(t, cfg).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if report.Documents != 1 || len(report.References) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.References[0].Source != "header:banner" || report.References[1].Source != "html" {
		t.Fatalf("unexpected sources %+v", report.References)
	}
	if report.References[0].Local {
		t.Fatal("nothing has been fetched yet")
	}
	if report.References[1].PublicPath != publicPath(cfg, "https://e.com/i.png", "") {
		t.Fatalf("unexpected public path %q", report.References[1].PublicPath)
	}
}

func TestAllFetchesFailingLeavesDocumentIdentical(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	text := "---\ntitle:   Spaced   # comment\ncover: " + server.ImageURL("/missing-cover.png") + "\n---\n" +
		"![a](" + server.ImageURL("/missing-a.png") + ")\n"
	path := testsupport.WriteDocument(t, cfg, "page.md", text)
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 2 || summary.Mapped != 0 || summary.Updated != 0 || summary.Complete() {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := testsupport.ReadFile(t, path); got != text {
		t.Fatalf("document changed:\n%s", got)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("document should not have been written")
	}
}

func TestCoverImageScenario(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	url := server.ImageURL("/pic.jpg")
	path := testsupport.WriteDocument(t, cfg, "post.md", "![cover]("+url+")")

	if _, err := newPipeline(t, cfg).Run(context.Background(), pipeline.Options{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	name := assets.Hash(url) + ".jpg"
	if want := "![cover](/fetched-images/" + name + ")"; testsupport.ReadFile(t, path) != want {
		t.Fatalf("expected %q, got %q", want, testsupport.ReadFile(t, path))
	}
	if got := testsupport.ReadFile(t, filepath.Join(cfg.Paths.PublicDir, "fetched-images", name)); got != "image:/pic.jpg" {
		t.Fatalf("unexpected asset content %q", got)
	}
}

// removingStore deletes a document the first time an asset is resolved,
// simulating an edit that lands between discovery and rewrite.
type removingStore struct {
	*assets.Store
	path string
	once sync.Once
}

func (s *removingStore) Resolve(ctx context.Context, url string) (assets.Outcome, error) {
	s.once.Do(func() { _ = os.Remove(s.path) })
	return s.Store.Resolve(ctx, url)
}

func TestDocumentRemovedDuringFetchIsSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := testsupport.NewImageServer(t)
	gone := testsupport.WriteDocument(t, cfg, "gone.md", "![a]("+server.ImageURL("/gone.png")+")\n")
	kept := testsupport.WriteDocument(t, cfg, "kept.md", "![b]("+server.ImageURL("/kept.png")+")\n")

	inner, err := assets.NewFromConfig(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	store := &removingStore{Store: inner, path: gone}

	summary, err := newPipeline(t, cfg, pipeline.WithStore(store)).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Fetched != 2 || summary.Updated != 1 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(gone); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("removed document must not be recreated, stat err %v", err)
	}
	if strings.Contains(testsupport.ReadFile(t, kept), server.URL) {
		t.Fatal("remaining document should have been rewritten")
	}
}
