package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/nao1215/spiderq/internal/storage"
	"github.com/nao1215/spiderq/internal/storage/storagetest"
)

// testDatabaseURL returns the database used by these tests or skips.
func testDatabaseURL(t *testing.T) string {
	t.Helper()

	url := os.Getenv("SPIDERQ_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SPIDERQ_TEST_DATABASE_URL is not set")
	}
	return url
}

// TestConformance runs the shared adapter suite against a live database.
func TestConformance(t *testing.T) {
	t.Parallel()

	url := testDatabaseURL(t)
	storagetest.Run(t, storagetest.Harness{
		Open: func(t *testing.T, namespace string) storage.Storage {
			t.Helper()

			s, err := Open(context.Background(), url, namespace, Options{MaxConns: 4})
			if err != nil {
				t.Fatalf("failed to open storage: %v", err)
			}
			return s
		},
		InsertRaw: func(t *testing.T, s storage.Storage, key string, payload []byte) {
			t.Helper()

			ps := s.(*Storage)
			query := fmt.Sprintf(`INSERT INTO %s (payload, key) VALUES ($1, $2)`, ps.table)
			if _, err := ps.pool.Exec(context.Background(), query, payload, key); err != nil {
				t.Fatalf("failed to insert raw record: %v", err)
			}
		},
	})
}

// TestTableName tests namespace to table mapping.
func TestTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		namespace string
		want      string
	}{
		{namespace: "default", want: `"spiderq_default"`},
		{namespace: "crawl1", want: `"spiderq_crawl1"`},
		{namespace: strings.Repeat("a", 55), want: `"spiderq_` + strings.Repeat("a", 55) + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			t.Parallel()

			if got := tableName(tt.namespace); got != tt.want {
				t.Errorf("tableName(%q) = %s, want %s", tt.namespace, got, tt.want)
			}
		})
	}
}

// TestLongNamespaceNames verifies that long namespaces keep distinct,
// untruncated relation names.
func TestLongNamespaceNames(t *testing.T) {
	t.Parallel()

	one := storage.SanitizeNamespace(strings.Repeat("a", 60) + "one")
	two := storage.SanitizeNamespace(strings.Repeat("a", 60) + "two")

	names := map[string]string{
		"table one": relationName(one, ""),
		"table two": relationName(two, ""),
		"index one": relationName(one, pendingIndexSuffix),
		"index two": relationName(two, pendingIndexSuffix),
		"short":     relationName("aaaa", ""),
	}

	seen := make(map[string]string, len(names))
	for label, name := range names {
		if len(name) > maxIdentifierLen {
			t.Errorf("%s: %q is %d bytes, limit is %d", label, name, len(name), maxIdentifierLen)
		}
		if !strings.HasPrefix(name, tablePrefix) {
			t.Errorf("%s: %q lacks prefix %q", label, name, tablePrefix)
		}
		if other, ok := seen[name]; ok {
			t.Errorf("%s and %s share relation name %q", label, other, name)
		}
		seen[name] = label
	}

	if !strings.HasSuffix(names["index one"], pendingIndexSuffix) {
		t.Errorf("index name %q lacks suffix %q", names["index one"], pendingIndexSuffix)
	}
	if relationName(one, "") != relationName(one, "") {
		t.Error("relation name must be stable for a namespace")
	}
	if tableName(one) != `"`+names["table one"]+`"` {
		t.Errorf("tableName(%q) = %s, want quoted %q", one, tableName(one), names["table one"])
	}
	if indexName(two) != `"`+names["index two"]+`"` {
		t.Errorf("indexName(%q) = %s, want quoted %q", two, indexName(two), names["index two"])
	}
}

// TestOpenInvalidURL verifies that a bad connection string fails early.
func TestOpenInvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "postgres://%zz", "default", Options{}); err == nil {
		t.Error("expected error for invalid database URL")
	}
}
