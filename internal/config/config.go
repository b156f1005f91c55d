package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "spiderq"

	// BackendMemory keeps the queue in process memory.
	BackendMemory = "memory"

	// BackendSQLite stores each namespace in its own SQLite file.
	BackendSQLite = "sqlite"

	// BackendPostgres stores each namespace in its own PostgreSQL table.
	BackendPostgres = "postgres"

	// DefaultBackend is SQLite because it needs no running server and
	// still survives restarts.
	DefaultBackend = BackendSQLite

	// DefaultNamespace is the queue partition used when none is given.
	DefaultNamespace = "default"

	// DefaultBatchSize is the number of requests claimed per batch.
	DefaultBatchSize = 25

	// DefaultDelay is the minimum spacing between throttled claims.
	// Zero disables throttling.
	DefaultDelay = 0 * time.Second

	// DefaultWorkers is the number of concurrent consumers for drain.
	DefaultWorkers = 1

	// DefaultBusyTimeout is how long SQLite writers wait for the lock
	// held by another process.
	DefaultBusyTimeout = 5 * time.Second

	// DefaultMaxDepth limits how deep discovered requests may go.
	DefaultMaxDepth = 5

	// LogFormatText writes human readable key=value log lines.
	LogFormatText = "text"

	// LogFormatJSON writes one JSON object per log line.
	LogFormatJSON = "json"

	// DefaultLogFormat is text, matching what a terminal user expects.
	DefaultLogFormat = LogFormatText
)

// Backends lists the supported storage backends.
var Backends = []string{BackendMemory, BackendSQLite, BackendPostgres}

// LogFormats lists the supported log formats.
var LogFormats = []string{LogFormatText, LogFormatJSON}

// Config holds all configuration options for spiderq.
// It is built once per command and passed down explicitly.
//
// Values are resolved in layers: NewConfig supplies the defaults, ApplyFile
// overlays the configuration file (its top level for storage, its defaults
// and queues blocks for the selected namespace), and the command applies
// only the flags the user actually set. Validate runs after all layers, so
// a bad value is reported no matter where it came from.
type Config struct {
	// Backend selects the storage: memory, sqlite or postgres.
	Backend string

	// StorageDir holds the SQLite partition files.
	// Defaults to the XDG data directory (~/.local/share/spiderq on Linux).
	StorageDir string

	// DatabaseURL is the PostgreSQL connection string.
	// Required when Backend is postgres.
	DatabaseURL string

	// Namespace is the queue partition to operate on.
	Namespace string

	// Delay is the minimum spacing between throttled claims.
	Delay time.Duration

	// BatchSize is the default number of requests per claim.
	BatchSize int

	// Workers is the number of concurrent consumers used by drain.
	Workers int

	// BusyTimeout is the SQLite lock wait.
	BusyTimeout time.Duration

	// PurgeOnStart clears the namespace before a push or drain.
	PurgeOnStart bool

	// Force claims without waiting for the throttle window.
	Force bool

	// MaxDepth limits how deep discovered requests may go. Negative is unlimited.
	MaxDepth int

	// MaxRequests caps the requests claimed per consumer. 0 is unlimited.
	MaxRequests int

	// Headers are added to every seed request.
	Headers map[string]string

	// IgnorePatterns are URL path globs never scheduled from discoveries.
	IgnorePatterns []string

	// FollowPatterns, if set, are the only URL path globs scheduled from discoveries.
	FollowPatterns []string

	// MetricsAddr, if set, serves Prometheus metrics on this address.
	MetricsAddr string

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat selects text or JSON log lines on stderr.
	// Both formats go through the secret-masking handler.
	LogFormat string

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches SearchPaths.
	ConfigFilePath string

	// JSONReport selects JSON output for status.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output for status.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Backend:     DefaultBackend,
		StorageDir:  XDGDataDir(),
		Namespace:   DefaultNamespace,
		Delay:       DefaultDelay,
		BatchSize:   DefaultBatchSize,
		Workers:     DefaultWorkers,
		BusyTimeout: DefaultBusyTimeout,
		MaxDepth:    DefaultMaxDepth,
		LogFormat:   DefaultLogFormat,
	}
}

// XDGDataDir returns the XDG data directory for spiderq.
// On Linux: ~/.local/share/spiderq
// On macOS: ~/Library/Application Support/spiderq
// On Windows: %LOCALAPPDATA%\spiderq
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spiderq.
// FindConfigFile looks for XDGConfigFile inside it.
// On Linux: ~/.config/spiderq
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile overlays the file's settings. Storage settings come from the
// top level; queue settings come from the defaults block merged with the
// entry for c.Namespace.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	if f.Backend != "" {
		c.Backend = f.Backend
	}
	if f.StorageDir != "" {
		c.StorageDir = f.StorageDir
	}
	if f.DatabaseURL != "" {
		c.DatabaseURL = f.DatabaseURL
	}

	q := f.GetQueueConfig(c.Namespace)
	if q.Delay != nil {
		c.Delay = *q.Delay
	}
	if q.BatchSize != 0 {
		c.BatchSize = q.BatchSize
	}
	if q.Workers != 0 {
		c.Workers = q.Workers
	}
	if q.PurgeOnStart != nil {
		c.PurgeOnStart = *q.PurgeOnStart
	}
	if q.Depth != nil {
		c.MaxDepth = *q.Depth
	}
	if len(q.Headers) > 0 {
		c.Headers = q.Headers
	}
	if len(q.IgnorePatterns) > 0 {
		c.IgnorePatterns = q.IgnorePatterns
	}
	if len(q.FollowPatterns) > 0 {
		c.FollowPatterns = q.FollowPatterns
	}
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Backend) {
		return ErrInvalidBackend
	}

	if c.Backend == BackendPostgres && c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.MaxRequests < 0 {
		return ErrInvalidMaxRequests
	}

	if !slices.Contains(LogFormats, c.LogFormat) {
		return ErrInvalidLogFormat
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
