// Package main provides the entry point for thinkchat, a terminal chat
// client that streams a model's reasoning alongside its answer.
package main

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	Execute()
}
