// Package storagetest provides a conformance suite for storage.Storage
// adapters. Each adapter package runs it from its own tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/storage"
)

// Harness connects the suite to a concrete adapter.
type Harness struct {
	// Open returns a new adapter bound to namespace. Two adapters opened
	// by the same Harness with the same namespace must share a partition,
	// the way two processes pointed at the same store would.
	Open func(t *testing.T, namespace string) storage.Storage

	// InsertRaw stores payload under key without going through the codec.
	InsertRaw func(t *testing.T, s storage.Storage, key string, payload []byte)
}

// Run executes every conformance test against h.
// Each subtest uses its own namespace and purges it first, so the suite
// can run against a shared database.
func Run(t *testing.T, h Harness) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, h Harness, ns string)
	}{
		{name: "FIFO order", fn: testFIFO},
		{name: "deduplication", fn: testDedup},
		{name: "dedup holds for taken records until purge", fn: testDedupAfterTaken},
		{name: "batch bound and no redelivery", fn: testBatchBound},
		{name: "purge", fn: testPurge},
		{name: "empty and stats", fn: testEmptyAndStats},
		{name: "namespace isolation", fn: testNamespaceIsolation},
		{name: "long namespaces with a shared prefix are isolated", fn: testLongNamespaceIsolation},
		{name: "set namespace rebinds", fn: testSetNamespace},
		{name: "concurrent consumers are disjoint", fn: testConcurrentDisjoint},
		{name: "concurrent drain delivers each record once", fn: testConcurrentDrain},
		{name: "malformed records are skipped", fn: testMalformed},
		{name: "invalid batch size", fn: testInvalidBatchSize},
		{name: "closed adapter", fn: testClosed},
	}

	for i, tt := range tests {
		ns := fmt.Sprintf("conformance%d", i)
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.fn(t, h, ns)
		})
	}
}

func open(t *testing.T, h Harness, ns string) storage.Storage {
	t.Helper()

	s := h.Open(t, ns)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Purge(context.Background()); err != nil {
		t.Fatalf("failed to reset namespace %q: %v", ns, err)
	}
	return s
}

func push(t *testing.T, s storage.Storage, rawURL string) bool {
	t.Helper()

	req, err := model.NewRequest(rawURL)
	if err != nil {
		t.Fatalf("invalid request %q: %v", rawURL, err)
	}
	inserted, err := s.PushItem(context.Background(), req, req.Key())
	if err != nil {
		t.Fatalf("PushItem(%q) failed: %v", rawURL, err)
	}
	return inserted
}

func pull(t *testing.T, s storage.Storage, n int) []string {
	t.Helper()

	reqs, err := s.PullItems(context.Background(), n)
	if err != nil {
		t.Fatalf("PullItems(%d) failed: %v", n, err)
	}
	return urls(reqs)
}

func urls(reqs []*model.Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.URL
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testFIFO(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)

	want := []string{
		"http://example.com/1",
		"http://example.com/2",
		"http://example.com/3",
		"http://example.com/4",
		"http://example.com/5",
	}
	for _, u := range want {
		push(t, s, u)
	}

	if got := pull(t, s, 10); !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func testDedup(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)
	ctx := context.Background()

	first := &model.Request{URL: "http://example.com/a", Method: "GET", Meta: map[string]string{"copy": "first"}}
	if ok, err := s.PushItem(ctx, first, first.Key()); err != nil || !ok {
		t.Fatalf("expected first insert, got inserted=%v err=%v", ok, err)
	}
	if !push(t, s, "http://example.com/b") {
		t.Fatal("expected /b to be inserted")
	}

	second := &model.Request{URL: "http://EXAMPLE.com/a#frag", Method: "GET", Meta: map[string]string{"copy": "second"}}
	ok, err := s.PushItem(ctx, second, second.Key())
	if err != nil {
		t.Fatalf("duplicate push must not fail: %v", err)
	}
	if ok {
		t.Error("expected duplicate to report inserted=false")
	}
	if !push(t, s, "http://example.com/c") {
		t.Fatal("expected /c to be inserted")
	}

	reqs, err := s.PullItems(ctx, 10)
	if err != nil {
		t.Fatalf("PullItems failed: %v", err)
	}
	want := []string{"http://example.com/a", "http://example.com/b", "http://example.com/c"}
	if got := urls(reqs); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if reqs[0].Meta["copy"] != "first" {
		t.Errorf("expected the first copy to win, got %q", reqs[0].Meta["copy"])
	}
}

func testDedupAfterTaken(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)

	push(t, s, "http://example.com/a")
	pull(t, s, 1)

	if push(t, s, "http://example.com/a") {
		t.Error("expected taken record to still block duplicates")
	}

	if err := s.Purge(context.Background()); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if !push(t, s, "http://example.com/a") {
		t.Error("expected insert to succeed after purge")
	}
}

func testBatchBound(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)

	for i := range 7 {
		push(t, s, fmt.Sprintf("http://example.com/%d", i))
	}

	seen := make(map[string]bool)
	for _, want := range []int{3, 3, 1, 0} {
		got := pull(t, s, 3)
		if len(got) != want {
			t.Fatalf("expected batch of %d, got %d (%v)", want, len(got), got)
		}
		for _, u := range got {
			if seen[u] {
				t.Errorf("record %s delivered twice", u)
			}
			seen[u] = true
		}
	}
}

func testPurge(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)
	ctx := context.Background()

	for i := range 3 {
		push(t, s, fmt.Sprintf("http://example.com/%d", i))
	}
	pull(t, s, 1)

	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if !empty {
		t.Error("expected empty queue after purge")
	}
	if got := pull(t, s, 10); len(got) != 0 {
		t.Errorf("expected no records after purge, got %v", got)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total() != 0 {
		t.Errorf("expected no records, got %+v", stats)
	}
}

func testEmptyAndStats(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)
	ctx := context.Background()

	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if !empty {
		t.Error("expected new namespace to be empty")
	}

	for i := range 3 {
		push(t, s, fmt.Sprintf("http://example.com/%d", i))
	}
	pull(t, s, 1)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Pending != 2 || stats.Taken != 1 {
		t.Errorf("expected 2 pending and 1 taken, got %+v", stats)
	}
	if stats.Namespace != ns {
		t.Errorf("expected namespace %q, got %q", ns, stats.Namespace)
	}
	if stats.Backend == "" {
		t.Error("expected backend name in stats")
	}

	pull(t, s, 10)
	empty, err = s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if !empty {
		t.Error("expected empty queue once everything is taken")
	}
}

func testNamespaceIsolation(t *testing.T, h Harness, ns string) {
	alpha := open(t, h, ns+"alpha")
	beta := open(t, h, ns+"beta")

	push(t, alpha, "http://example.com/shared")
	if !push(t, beta, "http://example.com/shared") {
		t.Error("expected same key to be independent across namespaces")
	}
	push(t, beta, "http://example.com/beta-only")

	if got := pull(t, alpha, 10); !equal(got, []string{"http://example.com/shared"}) {
		t.Errorf("alpha saw %v", got)
	}
	if got := pull(t, beta, 10); len(got) != 2 {
		t.Errorf("beta expected 2 records, got %v", got)
	}

	// Names that sanitize alike share a partition.
	alias := h.Open(t, "  "+ns+"-ALPHA!")
	t.Cleanup(func() { _ = alias.Close() })
	if alias.Namespace() != alpha.Namespace() {
		t.Fatalf("expected %q, got %q", alpha.Namespace(), alias.Namespace())
	}
	if push(t, alias, "http://example.com/shared") {
		t.Error("expected alias namespace to see alpha's record")
	}
}

func testLongNamespaceIsolation(t *testing.T, h Harness, ns string) {
	prefix := ns + strings.Repeat("x", 64)
	one := open(t, h, prefix+"one")
	two := open(t, h, prefix+"two")

	if one.Namespace() == two.Namespace() {
		t.Fatalf("expected distinct namespaces, both are %q", one.Namespace())
	}

	push(t, one, "http://example.com/shared")
	if !push(t, two, "http://example.com/shared") {
		t.Error("expected same key to be independent across long namespaces")
	}

	if err := two.Purge(context.Background()); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if got := pull(t, one, 10); !equal(got, []string{"http://example.com/shared"}) {
		t.Errorf("purging one long namespace touched the other, pulled %v", got)
	}
}

func testSetNamespace(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns+"x")
	ctx := context.Background()

	push(t, s, "http://example.com/x")

	if err := s.SetNamespace(ctx, ns+"y"); err != nil {
		t.Fatalf("SetNamespace failed: %v", err)
	}
	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if s.Namespace() != ns+"y" {
		t.Errorf("expected namespace %q, got %q", ns+"y", s.Namespace())
	}
	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if !empty {
		t.Error("expected fresh namespace to be empty")
	}

	if err := s.SetNamespace(ctx, ns+"x"); err != nil {
		t.Fatalf("SetNamespace failed: %v", err)
	}
	if got := pull(t, s, 10); !equal(got, []string{"http://example.com/x"}) {
		t.Errorf("expected original record back, got %v", got)
	}
}

func testConcurrentDisjoint(t *testing.T, h Harness, ns string) {
	producer := open(t, h, ns)
	for i := range 10 {
		push(t, producer, fmt.Sprintf("http://example.com/%d", i))
	}

	consumers := []storage.Storage{h.Open(t, ns), h.Open(t, ns)}
	results := make([][]string, len(consumers))

	var wg sync.WaitGroup
	errs := make(chan error, len(consumers))
	for i, c := range consumers {
		t.Cleanup(func() { _ = c.Close() })
		wg.Add(1)
		go func() {
			defer wg.Done()
			reqs, err := c.PullItems(context.Background(), 5)
			if err != nil {
				errs <- err
				return
			}
			results[i] = urls(reqs)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent PullItems failed: %v", err)
	}

	seen := make(map[string]bool)
	for i, got := range results {
		if len(got) != 5 {
			t.Errorf("consumer %d expected 5 records, got %d", i, len(got))
		}
		for _, u := range got {
			if seen[u] {
				t.Errorf("record %s delivered to more than one consumer", u)
			}
			seen[u] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("expected 10 distinct records, got %d", len(seen))
	}
}

func testConcurrentDrain(t *testing.T, h Harness, ns string) {
	const total = 50
	const workers = 4

	producer := open(t, h, ns)
	for i := range total {
		push(t, producer, fmt.Sprintf("http://example.com/%d", i))
	}

	var (
		mu   sync.Mutex
		got  []string
		wg   sync.WaitGroup
		errs = make(chan error, workers)
	)
	for range workers {
		c := h.Open(t, ns)
		t.Cleanup(func() { _ = c.Close() })
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				reqs, err := c.PullItems(context.Background(), 3)
				if err != nil {
					errs <- err
					return
				}
				if len(reqs) == 0 {
					return
				}
				mu.Lock()
				got = append(got, urls(reqs)...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent drain failed: %v", err)
	}

	sort.Strings(got)
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Errorf("record %s delivered twice", got[i])
		}
	}
	if len(got) != total {
		t.Errorf("expected %d records, got %d", total, len(got))
	}
}

func testMalformed(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)
	ctx := context.Background()

	push(t, s, "http://example.com/a")
	h.InsertRaw(t, s, "http://example.com/bad", []byte("not a payload"))
	push(t, s, "http://example.com/c")

	reqs, err := s.PullItems(ctx, 10)
	var skipped *storage.SkippedError
	if !errors.As(err, &skipped) {
		t.Fatalf("expected *SkippedError, got %v", err)
	}
	if len(skipped.Records) != 1 || skipped.Records[0].Key != "http://example.com/bad" {
		t.Errorf("unexpected skipped records: %+v", skipped.Records)
	}
	if !errors.Is(err, model.ErrMalformedPayload) {
		t.Error("expected skipped error to wrap ErrMalformedPayload")
	}

	want := []string{"http://example.com/a", "http://example.com/c"}
	if got := urls(reqs); !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if !empty {
		t.Error("expected malformed record to stay taken")
	}
}

func testInvalidBatchSize(t *testing.T, h Harness, ns string) {
	s := open(t, h, ns)

	for _, n := range []int{0, -1} {
		if _, err := s.PullItems(context.Background(), n); !errors.Is(err, storage.ErrInvalidBatchSize) {
			t.Errorf("PullItems(%d): expected ErrInvalidBatchSize, got %v", n, err)
		}
	}
}

func testClosed(t *testing.T, h Harness, ns string) {
	s := h.Open(t, ns)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := s.IsEmpty(context.Background()); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
