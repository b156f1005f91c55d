// Package main provides the entry point for the spiderq CLI.
//
// spiderq is a persistent, rate-limited and deduplicating queue of crawl
// requests. Producers push URLs into a namespace; consumers pull or drain
// them in FIFO batches spaced by a configurable delay.
//
// Usage:
//
//	spiderq push https://example.com/
//	spiderq pull -n 10
//	spiderq drain --workers 4
//
// See --help for all available options.
package main

func main() {
	Execute()
}
