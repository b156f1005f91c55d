package report

import (
	"fmt"
	"io"
	"strings"
)

const ruleWidth = 60

// SimpleWriter outputs plain text for terminals.
type SimpleWriter struct {
	baseWriter

	// verbose adds the step list and timing of a run.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables additional run details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	w.writeQueue(&sb, report)
	if report.Run != nil {
		w.writeRun(&sb, report.Run)
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeQueue(sb *strings.Builder, report *Report) {
	q := report.Queue

	writeSection(sb, "QUEUE")
	fmt.Fprintf(sb, "  Namespace: %s\n", q.Namespace)
	fmt.Fprintf(sb, "  Backend:   %s\n", q.Backend)
	fmt.Fprintf(sb, "  Pending:   %d\n", q.Pending)
	fmt.Fprintf(sb, "  Taken:     %d\n", q.Taken)
	fmt.Fprintf(sb, "  Total:     %d\n", q.Total())
	if q.Empty() {
		sb.WriteString("  Status:    empty\n")
	} else {
		sb.WriteString("  Status:    pending work\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRun(sb *strings.Builder, run *RunSummary) {
	writeSection(sb, "RUN")
	if run.Purged {
		sb.WriteString("  Purged:     yes\n")
	}
	fmt.Fprintf(sb, "  Seeded:     %d\n", run.Seeded)
	fmt.Fprintf(sb, "  Claimed:    %d\n", run.Claimed)
	fmt.Fprintf(sb, "  Handled:    %d\n", run.Handled)
	fmt.Fprintf(sb, "  Failed:     %d\n", run.Failed)
	fmt.Fprintf(sb, "  Skipped:    %d\n", run.Skipped)
	fmt.Fprintf(sb, "  Discovered: %d\n", run.Discovered)
	fmt.Fprintf(sb, "  Scheduled:  %d\n", run.Scheduled)

	if w.verbose {
		fmt.Fprintf(sb, "  Steps:      %s\n", strings.Join(run.Steps, " -> "))
		fmt.Fprintf(sb, "  Duration:   %s\n", run.Duration)
	}
	if !run.Succeeded() {
		fmt.Fprintf(sb, "  Error:      %s\n", run.Error)
	}
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
}
