package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegRequirement describes the transcoder binary. It is optional when
// transcoding is disabled.
func FFmpegRequirement(binary string, transcodeEnabled bool) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Converts fetched images to the target format",
		Optional:    !transcodeEnabled,
	}
}

// EncoderForFormat maps a target format to the ffmpeg encoder that produces it.
func EncoderForFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "webp":
		return "libwebp"
	case "jpeg", "jpg":
		return "mjpeg"
	case "png":
		return "png"
	default:
		return ""
	}
}

// CheckEncoder asks ffmpeg whether it was built with encoder.
func CheckEncoder(ctx context.Context, binary, encoder string) Status {
	status := Status{
		Name:        "FFmpeg encoder " + encoder,
		Command:     binary,
		Description: "Required for the configured target format",
	}
	if strings.TrimSpace(encoder) == "" {
		status.Detail = "no encoder for target format"
		return status
	}

	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		status.Detail = fmt.Sprintf("list encoders: %v", err)
		return status
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == encoder {
			status.Available = true
			return status
		}
	}
	status.Detail = fmt.Sprintf("encoder %q not available in %s", encoder, binary)
	return status
}
