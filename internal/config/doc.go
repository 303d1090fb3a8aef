// Package config loads, normalizes, and validates imgsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// IMGSYNC_DEBUG. The Config type centralizes every knob the pipeline and CLI
// need: where documents live, where mirrored images are written, how they are
// fetched and transcoded, and how the run is logged.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, a normalized public base path, and clear validation errors.
package config
