package assets

import "errors"

var (
	// ErrFetch marks network failures, non-2xx responses, timeouts, and
	// oversized bodies.
	ErrFetch = errors.New("fetch failed")
	// ErrTranscode marks conversion failures.
	ErrTranscode = errors.New("transcode failed")
	// ErrWrite marks failures writing the asset to the output directory.
	ErrWrite = errors.New("write failed")
)
