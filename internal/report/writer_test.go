package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/spiderq/internal/crawler"
	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/pipeline"
)

// createTestReport creates a report with a finished run.
func createTestReport() *Report {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := &pipeline.Run{
		Namespace: "crawl1",
		Performed: []string{"purge", "seed", "drain"},
		Purged:    true,
		Seeded:    2,
		Drain: crawler.Stats{
			Claimed:    7,
			Handled:    6,
			Failed:     1,
			Skipped:    1,
			Discovered: 9,
			Scheduled:  5,
		},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
	stats := model.QueueStats{Namespace: "crawl1", Backend: "sqlite", Pending: 3, Taken: 7}
	return New(stats, run)
}

// TestNew tests the conversion of a pipeline run.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("status only", func(t *testing.T) {
		t.Parallel()

		r := New(model.QueueStats{Namespace: "default"}, nil)
		if r.Run != nil {
			t.Error("expected no run summary")
		}
		if r.GeneratedAt.IsZero() {
			t.Error("expected generation time")
		}
	})

	t.Run("run summary", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		if r.Run.Duration != 1500*time.Millisecond {
			t.Errorf("expected 1.5s, got %s", r.Run.Duration)
		}
		if r.Run.Claimed != 7 || r.Run.Scheduled != 5 {
			t.Errorf("unexpected counters: %+v", r.Run)
		}
		if !r.Run.Succeeded() {
			t.Error("expected success")
		}
	})

	t.Run("run error", func(t *testing.T) {
		t.Parallel()

		r := New(model.QueueStats{}, &pipeline.Run{Err: errors.New("boom")})
		if r.Run.Succeeded() || r.Run.Error != "boom" {
			t.Errorf("expected error to be kept, got %+v", r.Run)
		}
		if r.Run.Duration != 0 {
			t.Errorf("expected zero duration without timestamps, got %s", r.Run.Duration)
		}
	})
}

// TestSimpleWriter tests the plain text writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes queue and run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{"QUEUE", "Namespace: crawl1", "Pending:   3", "Total:     10", "RUN", "Purged:     yes", "Skipped:    1"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Steps:") {
			t.Error("steps should only be shown in verbose mode")
		}
	})

	t.Run("verbose shows steps", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "purge -> seed -> drain") {
			t.Errorf("expected step list:\n%s", buf.String())
		}
	})

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(New(model.QueueStats{Namespace: "default"}, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Status:    empty") {
			t.Errorf("expected empty status:\n%s", buf.String())
		}
		if strings.Contains(buf.String(), "RUN") {
			t.Error("expected no run section")
		}
	})
}

// TestJSONWriter tests the JSON writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output is one line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected a single line, got %q", buf.String())
		}

		var decoded Report
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if decoded.Queue.Pending != 3 || decoded.Run == nil || decoded.Run.Handled != 6 {
			t.Errorf("unexpected decoded report: %+v", decoded)
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"queue\"") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}
	})

	t.Run("run omitted for status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(New(model.QueueStats{}, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), `"run"`) {
			t.Errorf("expected run to be omitted: %s", buf.String())
		}
	})
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{"# spiderq: crawl1", "## Queue", "## Run", "```mermaid", "Pending", "malformed record(s)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("empty queue has no chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(New(model.QueueStats{Namespace: "default"}, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("expected no chart for an empty partition")
		}
		if !strings.Contains(buf.String(), "No pending requests.") {
			t.Errorf("expected tip:\n%s", buf.String())
		}
	})

	t.Run("failed run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := New(model.QueueStats{Namespace: "x"}, &pipeline.Run{Err: errors.New("storage gone")})
		if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Run stopped: storage gone") {
			t.Errorf("expected caution:\n%s", buf.String())
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*Report) (int, error) { return 2, errors.New("disk full") }

// TestMultiWriter tests fan-out and error propagation.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		n, err := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b)).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != a.Len()+b.Len() {
			t.Errorf("expected %d bytes, got %d", a.Len()+b.Len(), n)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewMultiWriter(failingWriter{}, NewJSONWriter(&buf)).Write(createTestReport())
		if err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("later writers should not run after an error")
		}
	})
}
