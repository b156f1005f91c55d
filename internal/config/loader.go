package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/spiderq/internal/storage"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".spiderq"

// XDGConfigFile is the configuration file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// QueueConfig holds per-namespace queue settings.
// Pointer fields distinguish "unset" from an explicit zero or false.
type QueueConfig struct {
	// Delay is the minimum spacing between throttled claims, e.g. "2s".
	Delay *time.Duration `yaml:"delay,omitempty"`

	// BatchSize is the default number of requests per claim.
	BatchSize int `yaml:"batchSize,omitempty"`

	// Workers is the number of concurrent consumers for drain.
	Workers int `yaml:"workers,omitempty"`

	// PurgeOnStart clears the namespace before push or drain.
	PurgeOnStart *bool `yaml:"purgeOnStart,omitempty"`

	// Depth limits how deep discovered requests may go.
	Depth *int `yaml:"depth,omitempty"`

	// Headers are added to every seed request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path globs never scheduled from discoveries.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, if set, are the only URL path globs scheduled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .spiderq configuration file.
type File struct {
	// Backend selects the storage: memory, sqlite or postgres.
	Backend string `yaml:"backend,omitempty"`

	// StorageDir holds the SQLite partition files.
	StorageDir string `yaml:"storageDir,omitempty"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `yaml:"databaseURL,omitempty"`

	// Namespace is the partition used when --namespace is not given.
	Namespace string `yaml:"namespace,omitempty"`

	// Defaults applies to every namespace unless overridden in Queues.
	Defaults QueueConfig `yaml:"defaults,omitempty"`

	// Queues maps namespaces to their own settings. Keys are sanitized
	// the same way as namespaces, so "Shop-EU" configures "shopeu".
	Queues map[string]QueueConfig `yaml:"queues,omitempty"`
}

// LoadConfigFile loads the configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	queues := make(map[string]QueueConfig, len(cf.Queues))
	for name, q := range cf.Queues {
		queues[storage.SanitizeNamespace(name)] = q
	}
	cf.Queues = queues

	return &cf, nil
}

// GetQueueConfig returns the settings for namespace, merged over the defaults.
func (cf *File) GetQueueConfig(namespace string) QueueConfig {
	result := cf.Defaults

	q, ok := cf.Queues[storage.SanitizeNamespace(namespace)]
	if !ok {
		return result
	}

	if q.Delay != nil {
		result.Delay = q.Delay
	}
	if q.BatchSize != 0 {
		result.BatchSize = q.BatchSize
	}
	if q.Workers != 0 {
		result.Workers = q.Workers
	}
	if q.PurgeOnStart != nil {
		result.PurgeOnStart = q.PurgeOnStart
	}
	if q.Depth != nil {
		result.Depth = q.Depth
	}
	if len(q.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(q.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range q.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(q.IgnorePatterns) > 0 {
		result.IgnorePatterns = q.IgnorePatterns
	}
	if len(q.FollowPatterns) > 0 {
		result.FollowPatterns = q.FollowPatterns
	}

	return result
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .spiderq in the current directory
// 3. Look for config.yaml in the XDG config directory
// 4. Look for .spiderq in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}
	return firstExisting(SearchPaths())
}

// SearchPaths returns the locations FindConfigFile tries when no explicit
// path is given, most specific first.
func SearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	paths = append(paths, filepath.Join(XDGConfigDir(), XDGConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

// firstExisting returns the first path that names an existing file.
func firstExisting(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
