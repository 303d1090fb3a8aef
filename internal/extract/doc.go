// Package extract discovers remote image URLs in document bodies and headers.
//
// Three reference syntaxes are recognized: Markdown images, HTML img tags
// with a double-quoted src, and framework binding attributes (:src and
// v-bind:src). Each syntax is a Syntax value that also knows how to rewrite
// its own occurrences, so discovery and rewriting cannot drift apart.
package extract
