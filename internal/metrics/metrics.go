package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every Prometheus instrument spiderq records.
// Registered once via New and shared by pointer.
type Metrics struct {
	RequestsScheduled    *prometheus.CounterVec
	RequestsDeduplicated *prometheus.CounterVec
	RequestsClaimed      *prometheus.CounterVec
	RecordsMalformed     *prometheus.CounterVec
	Purges               *prometheus.CounterVec
	StorageErrors        *prometheus.CounterVec
	ClaimDuration        *prometheus.HistogramVec
}

// New registers all instruments with reg and returns them.
// Pass a fresh prometheus.NewRegistry() in tests to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spiderq_requests_scheduled_total",
			Help: "Requests accepted into the queue.",
		}, []string{"namespace"}),

		RequestsDeduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spiderq_requests_deduplicated_total",
			Help: "Requests dropped because their key was already queued.",
		}, []string{"namespace"}),

		RequestsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spiderq_requests_claimed_total",
			Help: "Requests handed out to consumers.",
		}, []string{"namespace"}),

		RecordsMalformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spiderq_records_malformed_total",
			Help: "Claimed records skipped because their payload could not be decoded.",
		}, []string{"namespace"}),

		Purges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spiderq_purges_total",
			Help: "Namespace purges.",
		}, []string{"namespace"}),

		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spiderq_storage_errors_total",
			Help: "Storage operations that returned an error.",
		}, []string{"op"}),

		ClaimDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spiderq_claim_seconds",
			Help:    "Time spent in a storage claim.",
			Buckets: prometheus.DefBuckets,
		}, []string{"namespace"}),
	}

	reg.MustRegister(
		m.RequestsScheduled,
		m.RequestsDeduplicated,
		m.RequestsClaimed,
		m.RecordsMalformed,
		m.Purges,
		m.StorageErrors,
		m.ClaimDuration,
	)

	return m
}
