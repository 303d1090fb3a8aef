package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Path != present {
		t.Fatalf("expected resolved path %q, got %q", present, results[0].Path)
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status: %#v", results[2])
	}
}

func TestFFmpegRequirementOptionalWhenDisabled(t *testing.T) {
	if FFmpegRequirement("ffmpeg", true).Optional {
		t.Fatal("ffmpeg should be required when transcoding")
	}
	if !FFmpegRequirement("ffmpeg", false).Optional {
		t.Fatal("ffmpeg should be optional without transcoding")
	}
}

func TestEncoderForFormat(t *testing.T) {
	cases := map[string]string{"webp": "libwebp", "JPEG": "mjpeg", "jpg": "mjpeg", "png": "png", "avif": ""}
	for format, want := range cases {
		if got := EncoderForFormat(format); got != want {
			t.Fatalf("EncoderForFormat(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestCheckEncoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	script := []byte("#!/bin/sh\necho 'Encoders:'\necho ' V....D libwebp              libwebp WebP image'\necho ' V....D png                  PNG image'\n")
	if err := os.WriteFile(stub, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	if status := CheckEncoder(context.Background(), stub, "libwebp"); !status.Available {
		t.Fatalf("expected libwebp available, got %#v", status)
	}
	if status := CheckEncoder(context.Background(), stub, "mjpeg"); status.Available || status.Detail == "" {
		t.Fatalf("expected mjpeg unavailable with detail, got %#v", status)
	}
}
