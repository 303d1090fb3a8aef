// Package assets maps remote image URLs onto content-addressed local files.
//
// Names are the hex MD5 of the URL plus an extension, so the same URL lands
// on the same file across runs and processes. A Store resolves a URL by
// reusing an existing file when one is present and otherwise downloading,
// optionally transcoding, and atomically writing it.
package assets
