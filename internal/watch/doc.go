// Package watch triggers pipeline runs when documentation sources change.
//
// Events are debounced and filtered by content hash, so the rewrites a run
// makes to its own documents do not schedule another run.
package watch
