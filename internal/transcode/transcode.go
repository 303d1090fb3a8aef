package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// ErrEmptyOutput marks an encoder run that exited cleanly but produced nothing.
var ErrEmptyOutput = errors.New("transcoder produced no output")

// Transcoder converts image bytes into another encoding.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte) ([]byte, error)
	// Extension is the file extension, with leading dot, of the produced format.
	Extension() string
}

// FFmpeg runs the ffmpeg binary with stdin and stdout pipes.
type FFmpeg struct {
	Binary  string
	Format  string
	Quality int
}

// Option configures the FFmpeg transcoder.
type Option func(*FFmpeg)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if strings.TrimSpace(binary) != "" {
			f.Binary = strings.TrimSpace(binary)
		}
	}
}

// NewFFmpeg constructs a transcoder for format ("webp", "jpeg" or "png") at
// quality 1..100.
func NewFFmpeg(format string, quality int, opts ...Option) (*FFmpeg, error) {
	f := &FFmpeg{Binary: "ffmpeg", Format: strings.ToLower(strings.TrimSpace(format)), Quality: quality}
	for _, opt := range opts {
		opt(f)
	}
	if f.Format == "jpg" {
		f.Format = "jpeg"
	}
	if _, err := f.codecArgs(); err != nil {
		return nil, err
	}
	if f.Quality < 1 || f.Quality > 100 {
		return nil, fmt.Errorf("transcode: quality %d out of range 1..100", f.Quality)
	}
	return f, nil
}

// Extension implements Transcoder.
func (f *FFmpeg) Extension() string {
	if f.Format == "jpeg" {
		return ".jpeg"
	}
	return "." + f.Format
}

// Transcode implements Transcoder.
func (f *FFmpeg) Transcode(ctx context.Context, data []byte) ([]byte, error) {
	args, err := f.args()
	if err != nil {
		return nil, err
	}
	cmd := commandContext(ctx, f.Binary, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w: %s", f.Format, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg %s: %w", f.Format, ErrEmptyOutput)
	}
	return stdout.Bytes(), nil
}

func (f *FFmpeg) args() ([]string, error) {
	codec, err := f.codecArgs()
	if err != nil {
		return nil, err
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-frames:v", "1",
	}
	args = append(args, codec...)
	return append(args, "pipe:1"), nil
}

func (f *FFmpeg) codecArgs() ([]string, error) {
	switch f.Format {
	case "webp":
		return []string{"-c:v", "libwebp", "-quality", strconv.Itoa(f.Quality), "-f", "webp"}, nil
	case "jpeg":
		return []string{"-c:v", "mjpeg", "-q:v", strconv.Itoa(jpegScale(f.Quality)), "-f", "image2pipe"}, nil
	case "png":
		return []string{"-c:v", "png", "-f", "image2pipe"}, nil
	default:
		return nil, fmt.Errorf("transcode: unsupported format %q", f.Format)
	}
}

// jpegScale maps quality 1..100 onto the mjpeg qscale range 31..2, where lower
// is better.
func jpegScale(quality int) int {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return 31 - (quality-1)*29/99
}
