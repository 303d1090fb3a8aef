// Package main hosts the imgsync CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, builds a
// logger from it, and hands the work to internal/pipeline. Output meant for
// people is rendered as tables; --json variants emit the same data for scripts.
package main
