// Package metrics exposes Prometheus instruments for queue activity.
//
// New registers the instruments on a caller supplied registerer, so tests
// and the CLI each use their own prometheus.Registry and nothing touches
// the global default registry:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	store = metrics.Instrument(store, m)
//
// Instrument wraps a storage.Storage and counts what passes through it:
//
//	spiderq_requests_scheduled_total     accepted pushes, by namespace
//	spiderq_requests_deduplicated_total  pushes dropped as duplicates
//	spiderq_requests_claimed_total       requests handed to consumers
//	spiderq_records_malformed_total      claimed records that failed to decode
//	spiderq_purges_total                 namespace resets
//	spiderq_storage_errors_total         failed operations, by op
//	spiderq_claim_seconds                claim latency histogram
//
// The drain command serves the registry with promhttp when --metrics-addr
// is set.
package metrics
