// Package rewrite substitutes mapped remote URLs with local public paths in a
// document's header and body.
package rewrite
