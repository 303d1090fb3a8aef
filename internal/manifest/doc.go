// Package manifest persists an advisory history of fetched assets and
// pipeline runs in a SQLite database.
//
// The manifest is never consulted to decide whether an asset exists; the
// output directory is the only source of truth for reuse.
package manifest
