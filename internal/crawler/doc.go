// Package crawler runs consumer loops on top of a scheduler.Scheduler.
//
// An Engine claims batches of requests, hands each one to a Handler and
// schedules the follow-up requests the handler discovers. Fetching and
// parsing live behind the Handler; the engine only decides which
// discovered requests go back onto the queue.
//
// # Filters
//
// A discovered request is scheduled only if all of these hold:
//   - its depth does not exceed the configured maximum
//   - it stays on the parent's host, unless cross-host crawling is enabled
//   - its path matches no ignore pattern
//   - its path matches a follow pattern, when follow patterns are set
//
// # Usage
//
//	engine := crawler.NewEngine(sched, handler, crawler.WithMaxDepth(3))
//	stats, err := engine.Run(ctx)
package crawler
