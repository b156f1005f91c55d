package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/report"
)

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// mustExecute is execute that fails the test on error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()

	stdout, stderr, err := execute(t, args...)
	if err != nil {
		t.Fatalf("spiderq %s: %v\n%s", strings.Join(args, " "), err, stderr)
	}
	return stdout
}

// decodeLines parses JSON lines of requests.
func decodeLines(t *testing.T, out string) []*model.Request {
	t.Helper()

	var reqs []*model.Request
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var req model.Request
		if err := dec.Decode(&req); err != nil {
			t.Fatalf("invalid request line: %v\n%s", err, out)
		}
		reqs = append(reqs, &req)
	}
	return reqs
}

// queueStatus reads the status of a namespace as JSON.
func queueStatus(t *testing.T, storeArgs ...string) model.QueueStats {
	t.Helper()

	out := mustExecute(t, append([]string{"status", "--json"}, storeArgs...)...)

	var r report.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("invalid status json: %v\n%s", err, out)
	}
	return r.Queue
}

// TestQueueLifecycle pushes, pulls, drains and purges one SQLite namespace.
func TestQueueLifecycle(t *testing.T) {
	t.Parallel()

	store := []string{"--dir", t.TempDir(), "--namespace", "Life-Cycle"}

	out := mustExecute(t, append([]string{"push",
		"http://example.com/a",
		"http://example.com/b",
		"HTTP://EXAMPLE.com/a#dup",
	}, store...)...)
	if !strings.Contains(out, "pending: 2") {
		t.Errorf("expected duplicate to be dropped, got %q", out)
	}

	stats := queueStatus(t, store...)
	if stats.Namespace != "lifecycle" || stats.Backend != "sqlite" {
		t.Errorf("unexpected partition: %+v", stats)
	}
	if stats.Pending != 2 || stats.Taken != 0 {
		t.Errorf("expected 2 pending, got %+v", stats)
	}

	pulled := decodeLines(t, mustExecute(t, append([]string{"pull", "-n", "1"}, store...)...))
	if len(pulled) != 1 || pulled[0].URL != "http://example.com/a" {
		t.Fatalf("expected the first pushed URL, got %+v", pulled)
	}

	drained := decodeLines(t, mustExecute(t, append([]string{"drain"}, store...)...))
	if len(drained) != 1 || drained[0].URL != "http://example.com/b" {
		t.Fatalf("expected the remaining URL, got %+v", drained)
	}

	// A claimed URL stays known until the namespace is purged.
	mustExecute(t, append([]string{"push", "http://example.com/a"}, store...)...)
	if stats := queueStatus(t, store...); stats.Pending != 0 || stats.Taken != 2 {
		t.Errorf("expected 0 pending and 2 taken, got %+v", stats)
	}

	out = mustExecute(t, append([]string{"purge"}, store...)...)
	if !strings.Contains(out, "lifecycle") {
		t.Errorf("expected namespace in purge output, got %q", out)
	}
	if stats := queueStatus(t, store...); stats.Total() != 0 {
		t.Errorf("expected empty partition after purge, got %+v", stats)
	}

	mustExecute(t, append([]string{"push", "http://example.com/a"}, store...)...)
	if stats := queueStatus(t, store...); stats.Pending != 1 {
		t.Errorf("expected URL to be accepted again after purge, got %+v", stats)
	}
}

// TestNamespacesAreIsolated tests that partitions do not see each other.
func TestNamespacesAreIsolated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mustExecute(t, "push", "http://example.com/a", "--dir", dir, "--namespace", "one")
	mustExecute(t, "push", "http://example.com/a", "http://example.com/b", "--dir", dir, "--namespace", "two")

	if got := queueStatus(t, "--dir", dir, "--namespace", "one").Pending; got != 1 {
		t.Errorf("expected 1 pending in one, got %d", got)
	}
	if got := queueStatus(t, "--dir", dir, "--namespace", "two").Pending; got != 2 {
		t.Errorf("expected 2 pending in two, got %d", got)
	}

	mustExecute(t, "purge", "--dir", dir, "--namespace", "one")
	if got := queueStatus(t, "--dir", dir, "--namespace", "two").Pending; got != 2 {
		t.Errorf("purging one must not touch two, got %d pending", got)
	}
}

// TestPushList tests reading URLs from a file and purging before push.
func TestPushList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	list := filepath.Join(t.TempDir(), "urls.txt")
	content := "# seeds\nhttp://example.com/1\n\n  http://example.com/2  \n"
	if err := os.WriteFile(list, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	mustExecute(t, "push", "http://example.com/old", "--dir", dir)
	out := mustExecute(t, "push", "--list", list, "--purge", "--dir", dir)
	if !strings.Contains(out, "Pushed 2 request(s)") {
		t.Errorf("unexpected output %q", out)
	}

	reqs := decodeLines(t, mustExecute(t, "pull", "--dir", dir))
	if len(reqs) != 2 || reqs[0].URL != "http://example.com/1" || reqs[1].URL != "http://example.com/2" {
		t.Errorf("expected only the listed URLs in order, got %+v", reqs)
	}
}

// TestPushErrors tests argument validation.
func TestPushErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, _, err := execute(t, "push", "--dir", dir); err == nil {
		t.Error("expected error without URLs")
	}
	if _, _, err := execute(t, "push", "http://example.com/", "--dir", dir, "--batch", "0"); err == nil {
		t.Error("expected error for zero batch size")
	}
	if _, _, err := execute(t, "push", "http://example.com/", "--backend", "postgres"); err == nil {
		t.Error("expected error for postgres without a database URL")
	}
	if _, _, err := execute(t, "pull", "-n", "-1", "--dir", dir); err == nil {
		t.Error("expected error for negative count")
	}
}

// TestDrainReport tests the run report written by drain.
func TestDrainReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reportPath := filepath.Join(t.TempDir(), "out", "run.json")

	stdout := mustExecute(t, "drain", "http://example.com/a", "http://example.com/b",
		"--dir", dir, "--workers", "2", "--batch", "1", "--json", "-o", reportPath)
	if got := len(decodeLines(t, stdout)); got != 2 {
		t.Errorf("expected 2 drained requests, got %d", got)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("invalid report: %v", err)
	}
	if r.Run == nil || r.Run.Seeded != 2 || r.Run.Claimed != 2 {
		t.Errorf("unexpected run summary: %+v", r.Run)
	}
	if strings.Join(r.Run.Steps, ",") != "seed,drain" {
		t.Errorf("unexpected steps %v", r.Run.Steps)
	}
	if r.Queue.Pending != 0 || r.Queue.Taken != 2 {
		t.Errorf("unexpected queue counters: %+v", r.Queue)
	}
}

// TestDrainMemoryWorkers tests that memory workers share one queue.
func TestDrainMemoryWorkers(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := execute(t, "drain",
		"http://example.com/a", "http://example.com/b", "http://example.com/c",
		"--backend", "memory", "--workers", "3", "--batch", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, stderr)
	}
	if got := len(decodeLines(t, stdout)); got != 3 {
		t.Errorf("expected each request once, got %d", got)
	}
	if !strings.Contains(stderr, "Claimed:    3") {
		t.Errorf("expected text report on stderr:\n%s", stderr)
	}
}

// TestDrainExec tests discovery through an external command.
func TestDrainExec(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	dir := t.TempDir()
	reportPath := filepath.Join(t.TempDir(), "run.json")

	// Every page links to /b, /c and an external site.
	script := `printf '/b\n/c\nhttp://other.example/x\n'`
	mustExecute(t, "drain", "http://example.com/a",
		"--dir", dir, "--exec", script, "--max-depth", "1", "--json", "-o", reportPath)

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("invalid report: %v", err)
	}

	// a, b and c are claimed; links beyond depth 1 and other hosts are dropped.
	if r.Queue.Taken != 3 || r.Queue.Pending != 0 {
		t.Errorf("expected 3 taken, got %+v", r.Queue)
	}
	if r.Run.Handled != 3 || r.Run.Discovered != 9 || r.Run.Scheduled != 2 {
		t.Errorf("unexpected run counters: %+v", r.Run)
	}
}
