// Package pipeline runs a full mirror pass over a documentation tree:
// enumerate sources, discover remote image URLs, resolve them once through
// the scheduler, and rewrite the documents that reference them.
//
// Discovery and rewriting are sequential; only the fetch phase is concurrent.
// A run holds an exclusive file lock on the output directory so two processes
// never interleave writes into the same tree.
package pipeline
