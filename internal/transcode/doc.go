// Package transcode converts fetched image bytes to the configured target
// format by piping them through ffmpeg.
package transcode
