package report

import (
	"time"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/pipeline"
)

// Report is a snapshot of one queue partition, optionally with the
// outcome of the run that produced it.
type Report struct {
	// GeneratedAt is when the snapshot was taken.
	GeneratedAt time.Time `json:"generated_at"`

	// Queue holds the partition counters.
	Queue model.QueueStats `json:"queue"`

	// Run is nil for plain status reports.
	Run *RunSummary `json:"run,omitempty"`
}

// RunSummary is the serializable form of a pipeline run.
type RunSummary struct {
	Steps      []string      `json:"steps"`
	Purged     bool          `json:"purged"`
	Seeded     int           `json:"seeded"`
	Claimed    int           `json:"claimed"`
	Handled    int           `json:"handled"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Discovered int           `json:"discovered"`
	Scheduled  int           `json:"scheduled"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

// New builds a Report for stats. run may be nil.
func New(stats model.QueueStats, run *pipeline.Run) *Report {
	r := &Report{
		GeneratedAt: time.Now(),
		Queue:       stats,
	}
	if run != nil {
		r.Run = summarize(run)
	}
	return r
}

func summarize(run *pipeline.Run) *RunSummary {
	s := &RunSummary{
		Steps:      append([]string(nil), run.Performed...),
		Purged:     run.Purged,
		Seeded:     run.Seeded,
		Claimed:    run.Drain.Claimed,
		Handled:    run.Drain.Handled,
		Failed:     run.Drain.Failed,
		Skipped:    run.Drain.Skipped,
		Discovered: run.Drain.Discovered,
		Scheduled:  run.Drain.Scheduled,
	}
	if !run.StartedAt.IsZero() && !run.FinishedAt.IsZero() {
		s.Duration = run.FinishedAt.Sub(run.StartedAt)
	}
	if run.Err != nil {
		s.Error = run.Err.Error()
	}
	return s
}

// Succeeded reports whether the run finished without error.
func (s *RunSummary) Succeeded() bool {
	return s.Error == ""
}
