// Package scheduler hands out crawl requests in FIFO batches at a bounded rate.
//
// Two implementations share the Scheduler interface:
//
//   - MemoryScheduler keeps pending requests in process memory. It does not
//     deduplicate and loses everything on exit.
//   - DurableScheduler delegates to a storage.Storage, which deduplicates by
//     logical key and claims records atomically, so several processes can
//     consume one namespace without receiving the same request twice.
//
// NextRequests waits until the throttle window opens, moves the window
// forward by the configured delay and then claims a batch.
// ForceNextRequests claims immediately and leaves the window alone.
//
// The window belongs to one Scheduler instance. Two processes sharing a
// namespace each run their own window, so the combined claim rate can be
// higher than one batch per delay.
package scheduler
