package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default backend is sqlite", func(t *testing.T) {
		t.Parallel()
		if cfg.Backend != BackendSQLite {
			t.Errorf("expected backend sqlite, got %q", cfg.Backend)
		}
	})

	t.Run("default namespace is default", func(t *testing.T) {
		t.Parallel()
		if cfg.Namespace != "default" {
			t.Errorf("expected namespace default, got %q", cfg.Namespace)
		}
	})

	t.Run("default log format is text", func(t *testing.T) {
		t.Parallel()
		if cfg.LogFormat != LogFormatText {
			t.Errorf("expected log format text, got %q", cfg.LogFormat)
		}
	})

	t.Run("default batch size is 25", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 25 {
			t.Errorf("expected batch size 25, got %d", cfg.BatchSize)
		}
	})

	t.Run("default delay is zero", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != 0 {
			t.Errorf("expected no delay, got %v", cfg.Delay)
		}
	})

	t.Run("default workers is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 1 {
			t.Errorf("expected 1 worker, got %d", cfg.Workers)
		}
	})

	t.Run("default busy timeout is 5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.BusyTimeout != 5*time.Second {
			t.Errorf("expected 5s, got %v", cfg.BusyTimeout)
		}
	})

	t.Run("default storage dir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.StorageDir != XDGDataDir() {
			t.Errorf("expected %q, got %q", XDGDataDir(), cfg.StorageDir)
		}
	})

	t.Run("purge on start is off", func(t *testing.T) {
		t.Parallel()
		if cfg.PurgeOnStart {
			t.Error("expected PurgeOnStart to be false")
		}
	})
}

// TestConfigValidate tests configuration validation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Backend = "redis" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "postgres without URL",
			modify:  func(c *Config) { c.Backend = BackendPostgres },
			wantErr: ErrMissingDatabaseURL,
		},
		{
			name: "postgres with URL",
			modify: func(c *Config) {
				c.Backend = BackendPostgres
				c.DatabaseURL = "postgres://localhost/spiderq"
			},
		},
		{
			name:    "zero batch size",
			modify:  func(c *Config) { c.BatchSize = 0 },
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "negative delay",
			modify:  func(c *Config) { c.Delay = -time.Second },
			wantErr: ErrInvalidDelay,
		},
		{
			name:    "zero workers",
			modify:  func(c *Config) { c.Workers = 0 },
			wantErr: ErrInvalidWorkers,
		},
		{
			name:    "negative max requests",
			modify:  func(c *Config) { c.MaxRequests = -1 },
			wantErr: ErrInvalidMaxRequests,
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
		{
			name:    "json log format",
			modify:  func(c *Config) { c.LogFormat = LogFormatJSON },
			wantErr: nil,
		},
		{
			name: "json and markdown together",
			modify: func(c *Config) {
				c.JSONReport = true
				c.MarkdownReport = true
			},
			wantErr: ErrConflictingReportFormats,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

const sampleConfig = `backend: postgres
databaseURL: postgres://localhost/spiderq
namespace: shop
defaults:
  delay: 1s
  batchSize: 10
  headers:
    User-Agent: spiderq
queues:
  Shop-EU:
    delay: 250ms
    purgeOnStart: true
    depth: 2
    headers:
      Accept-Language: de
    ignorePatterns:
      - "/cart/*"
  slow:
    delay: 0s
    workers: 3
`

// TestLoadConfigFile tests YAML loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.spiderq")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(writeConfig(t, sampleConfig))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cf.Backend != BackendPostgres || cf.Namespace != "shop" {
			t.Errorf("unexpected top level %+v", cf)
		}
		if cf.Defaults.Delay == nil || *cf.Defaults.Delay != time.Second {
			t.Errorf("expected default delay 1s, got %v", cf.Defaults.Delay)
		}

		q, ok := cf.Queues["shopeu"]
		if !ok {
			t.Fatal("expected queue keys to be sanitized")
		}
		if q.PurgeOnStart == nil || !*q.PurgeOnStart {
			t.Error("expected purgeOnStart true")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(writeConfig(t, `invalid: yaml: content: [}`)); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns error for invalid duration", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(writeConfig(t, "defaults:\n  delay: soon\n")); err == nil {
			t.Error("expected error for invalid duration")
		}
	})
}

// TestGetQueueConfig tests merging per-namespace settings over defaults.
func TestGetQueueConfig(t *testing.T) {
	t.Parallel()

	cf, err := LoadConfigFile(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("unknown namespace gets defaults", func(t *testing.T) {
		t.Parallel()

		q := cf.GetQueueConfig("other")
		if *q.Delay != time.Second || q.BatchSize != 10 {
			t.Errorf("unexpected defaults %+v", q)
		}
	})

	t.Run("namespace override merges with defaults", func(t *testing.T) {
		t.Parallel()

		q := cf.GetQueueConfig("shop-eu")
		if *q.Delay != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %v", *q.Delay)
		}
		if q.BatchSize != 10 {
			t.Errorf("expected inherited batch size 10, got %d", q.BatchSize)
		}
		if q.Headers["User-Agent"] != "spiderq" || q.Headers["Accept-Language"] != "de" {
			t.Errorf("expected merged headers, got %v", q.Headers)
		}
		if *q.Depth != 2 {
			t.Errorf("expected depth 2, got %d", *q.Depth)
		}
	})

	t.Run("explicit zero delay overrides default", func(t *testing.T) {
		t.Parallel()

		q := cf.GetQueueConfig("slow")
		if q.Delay == nil || *q.Delay != 0 {
			t.Errorf("expected explicit 0s delay, got %v", q.Delay)
		}
		if q.Workers != 3 {
			t.Errorf("expected 3 workers, got %d", q.Workers)
		}
	})

	t.Run("defaults are not mutated by merging", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetQueueConfig("shopeu")
		if _, ok := cf.Defaults.Headers["Accept-Language"]; ok {
			t.Error("queue headers leaked into defaults")
		}
	})
}

// TestApplyFile tests overlaying a file onto a Config.
func TestApplyFile(t *testing.T) {
	t.Parallel()

	cf, err := LoadConfigFile(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := NewConfig()
	cfg.Namespace = "shopeu"
	cfg.ApplyFile(cf)

	if cfg.Backend != BackendPostgres || cfg.DatabaseURL != "postgres://localhost/spiderq" {
		t.Errorf("expected storage settings from file, got %q %q", cfg.Backend, cfg.DatabaseURL)
	}
	if cfg.Delay != 250*time.Millisecond || cfg.BatchSize != 10 {
		t.Errorf("unexpected queue settings delay=%v batch=%d", cfg.Delay, cfg.BatchSize)
	}
	if !cfg.PurgeOnStart || cfg.MaxDepth != 2 {
		t.Errorf("expected purge and depth 2, got purge=%v depth=%d", cfg.PurgeOnStart, cfg.MaxDepth)
	}
	if len(cfg.IgnorePatterns) != 1 || !strings.HasPrefix(cfg.IgnorePatterns[0], "/cart") {
		t.Errorf("unexpected ignore patterns %v", cfg.IgnorePatterns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected merged config to be valid: %v", err)
	}

	before := *NewConfig()
	empty := NewConfig()
	empty.ApplyFile(nil)
	if empty.Backend != before.Backend || empty.BatchSize != before.BatchSize {
		t.Error("nil file must not change the config")
	}
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "defaults: {}")
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestSearchPaths tests the default search order.
func TestSearchPaths(t *testing.T) {
	t.Parallel()

	paths := SearchPaths()
	xdgPath := filepath.Join(XDGConfigDir(), XDGConfigFile)

	xdgIndex := -1
	for i, p := range paths {
		if p == xdgPath {
			xdgIndex = i
		}
	}
	if xdgIndex < 0 {
		t.Fatalf("expected %q in search paths %v", xdgPath, paths)
	}
	if cwd, err := os.Getwd(); err == nil {
		if paths[0] != filepath.Join(cwd, DefaultConfigFile) {
			t.Errorf("expected working directory first, got %q", paths[0])
		}
		if xdgIndex == 0 {
			t.Error("XDG config must come after the working directory")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if paths[len(paths)-1] != filepath.Join(home, DefaultConfigFile) {
			t.Errorf("expected home directory last, got %q", paths[len(paths)-1])
		}
	}
}

// TestFirstExisting tests that the first existing file wins.
func TestFirstExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")
	second := writeConfig(t, "defaults: {}")
	third := writeConfig(t, "defaults: {}")

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{name: "skips missing files", paths: []string{missing, second, third}, want: second},
		{name: "skips directories", paths: []string{dir, third}, want: third},
		{name: "nothing found", paths: []string{missing}, want: ""},
		{name: "no candidates", paths: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := firstExisting(tt.paths); got != tt.want {
				t.Errorf("firstExisting() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if !strings.HasSuffix(dir, AppName) {
			t.Errorf("%s dir %q does not end with %q", name, dir, AppName)
		}
	}
}
