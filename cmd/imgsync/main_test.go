package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgsync/internal/assets"
	"imgsync/internal/config"
	"imgsync/internal/pipeline"
	"imgsync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	server     *testsupport.ImageServer
	configPath string
	docPath    string
	imageURL   string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	server := testsupport.NewImageServer(t)
	imageURL := server.ImageURL("/a.png")
	docPath := testsupport.WriteDocument(t, cfg, "guide/intro.md", "# Intro\n\n![diagram]("+imageURL+")\n")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "imgsync.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		server:     server,
		configPath: configPath,
		docPath:    docPath,
		imageURL:   imageURL,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIRunMirrorsAndRewrites(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Fetched") || !strings.Contains(out, "Documents updated") {
		t.Fatalf("unexpected run output: %q", out)
	}

	name := assets.FileName(env.imageURL, "")
	if _, err := os.Stat(filepath.Join(env.cfg.OutputDir(), name)); err != nil {
		t.Fatalf("expected mirrored asset: %v", err)
	}
	doc := testsupport.ReadFile(t, env.docPath)
	if want := "![diagram](/fetched-images/" + name + ")"; !strings.Contains(doc, want) {
		t.Fatalf("document not rewritten, got %q", doc)
	}
}

func TestCLIRunJSONSummary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run --json: %v", err)
	}
	var summary pipeline.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.Discovered != 1 || summary.Fetched != 1 || summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Bytes != int64(len("image:/a.png")) {
		t.Fatalf("expected byte total %d, got %d", len("image:/a.png"), summary.Bytes)
	}

	out, _, err = runCLI(t, []string{"run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	summary = pipeline.Summary{}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode second summary: %v", err)
	}
	if summary.Fetched != 0 || env.server.TotalRequests() != 1 {
		t.Fatalf("second run should fetch nothing, summary %+v requests %d", summary, env.server.TotalRequests())
	}
}

func TestCLIDryRunLeavesTreeUntouched(t *testing.T) {
	env := setupCLITestEnv(t)
	before := testsupport.ReadFile(t, env.docPath)

	out, _, err := runCLI(t, []string{"run", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("run --dry-run: %v", err)
	}
	if !strings.Contains(out, "Would fetch") || !strings.Contains(out, env.imageURL) {
		t.Fatalf("dry run output missing pending URL: %q", out)
	}
	if env.server.TotalRequests() != 0 {
		t.Fatalf("dry run made %d requests", env.server.TotalRequests())
	}
	if after := testsupport.ReadFile(t, env.docPath); after != before {
		t.Fatalf("dry run modified document: %q", after)
	}
	if _, err := os.Stat(env.cfg.OutputDir()); !os.IsNotExist(err) {
		t.Fatalf("dry run should not create the output directory, stat err %v", err)
	}
}

func TestCLIScanJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scan", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var report pipeline.ScanReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Documents != 1 || len(report.References) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	ref := report.References[0]
	if ref.URL != env.imageURL || ref.Source != "markdown" || ref.Local {
		t.Fatalf("unexpected reference %+v", ref)
	}

	out, _, err = runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan table: %v", err)
	}
	if !strings.Contains(out, "guide/intro.md") {
		t.Fatalf("scan table missing document: %q", out)
	}
}

func TestCLIHash(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"hash", "https://example.com/a.png"}, env.configPath)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.Contains(out, "8c11d92f07c76baf29e49afd2301deb2.png") {
		t.Fatalf("hash output missing asset name: %q", out)
	}
	if !strings.Contains(out, "/fetched-images/8c11d92f07c76baf29e49afd2301deb2.png") {
		t.Fatalf("hash output missing public path: %q", out)
	}

	if _, _, err := runCLI(t, []string{"hash"}, env.configPath); err == nil {
		t.Fatal("expected error when no URL is given")
	}
}

func TestCLIConfigCommands(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "imgsync.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, target)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "image_sub_dir_name") {
		t.Fatalf("config show missing keys: %q", out)
	}
}

func TestCLIConfigValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgsync.toml")
	if err := os.WriteFile(path, []byte("[fetch]\nconcurrency = -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCLIManifestList(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithManifest())

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}
	out, _, err := runCLI(t, []string{"manifest", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest list: %v", err)
	}
	if !strings.Contains(out, assets.FileName(env.imageURL, "")) {
		t.Fatalf("manifest list missing fetched asset: %q", out)
	}

	out, _, err = runCLI(t, []string{"manifest", "runs"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest runs: %v", err)
	}
	if !strings.Contains(out, "Discovered") {
		t.Fatalf("manifest runs missing header: %q", out)
	}
}

func TestCLIManifestDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"manifest", "list"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestCLIDoctor(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedFFmpeg())
	stub := env.cfg.Transcode.FFmpegBinary
	script := "#!/bin/sh\necho ' V....D libwebp              libwebp WebP image'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "FFmpeg encoder libwebp") || !strings.Contains(out, "[OK]") {
		t.Fatalf("unexpected doctor output: %q", out)
	}

	env.cfg.Transcode.FFmpegBinary = filepath.Join(t.TempDir(), "missing-ffmpeg")
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err = runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatalf("expected doctor failure for missing ffmpeg, output %q", out)
	}
	if !strings.Contains(out, "[ERROR]") {
		t.Fatalf("doctor output missing error line: %q", out)
	}
}
