package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("spiderq: " + report.Queue.Namespace)
	md.PlainText("")

	w.writeQueue(md, report)
	if report.Run != nil {
		w.writeRun(md, report.Run)
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated at %s*", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeQueue(md *markdown.Markdown, report *Report) {
	q := report.Queue

	md.H2("Queue")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Namespace", "`" + q.Namespace + "`"},
			{"Backend", q.Backend},
			{"Pending", strconv.Itoa(q.Pending)},
			{"Taken", strconv.Itoa(q.Taken)},
			{"Total", strconv.Itoa(q.Total())},
		},
	})
	md.PlainText("")

	if q.Total() > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Queue records"),
			piechart.WithShowData(true),
		)
		chart.LabelAndIntValue("Pending", uint64(q.Pending))
		chart.LabelAndIntValue("Taken", uint64(q.Taken))

		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	if q.Empty() {
		md.Tip("No pending requests.")
	} else {
		md.Note(fmt.Sprintf("%d request(s) waiting to be claimed.", q.Pending))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRun(md *markdown.Markdown, run *RunSummary) {
	md.H2("Run")
	md.PlainText("")

	if len(run.Steps) > 0 {
		md.PlainTextf("Steps: %s", strings.Join(run.Steps, " → "))
		md.PlainText("")
	}

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Seeded", strconv.Itoa(run.Seeded)},
			{"Claimed", strconv.Itoa(run.Claimed)},
			{"Handled", strconv.Itoa(run.Handled)},
			{"Failed", strconv.Itoa(run.Failed)},
			{"Skipped", strconv.Itoa(run.Skipped)},
			{"Discovered", strconv.Itoa(run.Discovered)},
			{"Scheduled", strconv.Itoa(run.Scheduled)},
			{"Duration", run.Duration.String()},
		},
	})
	md.PlainText("")

	switch {
	case !run.Succeeded():
		md.Cautionf("Run stopped: %s", run.Error)
	case run.Skipped > 0:
		md.Warningf("%d malformed record(s) were skipped and left taken.", run.Skipped)
	case run.Failed > 0:
		md.Importantf("%d request(s) failed in the handler.", run.Failed)
	}
	md.PlainText("")
}
