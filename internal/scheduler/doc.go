// Package scheduler resolves a batch of URLs concurrently on a bounded worker
// pool and assembles the URL to public path mapping once every task has
// finished.
//
// Failures are per URL: a failed URL is logged and left out of the mapping
// while the rest of the batch continues.
package scheduler
