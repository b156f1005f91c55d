package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/spiderq/internal/config"
	"github.com/nao1215/spiderq/internal/log"
	"github.com/nao1215/spiderq/internal/metrics"
	"github.com/nao1215/spiderq/internal/scheduler"
	"github.com/nao1215/spiderq/internal/storage"
	"github.com/nao1215/spiderq/internal/storage/postgres"
	"github.com/nao1215/spiderq/internal/storage/sqlite"
)

// databaseURLEnv is read when neither the flag nor the file sets a URL.
const databaseURLEnv = "SPIDERQ_DATABASE_URL"

// buildConfig creates a Config from defaults, the configuration file and
// the flags the user set explicitly, in that order. It does not validate:
// commands add their own flags first.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit path must exist; the default search may find nothing.
	var file *config.File
	if configPath := config.FindConfigFile(cfg.ConfigFilePath); configPath != "" {
		file, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	// The namespace picks the queue block of the file, so it is resolved first.
	if flags.Changed("namespace") {
		if cfg.Namespace, err = flags.GetString("namespace"); err != nil {
			return nil, err
		}
	} else if file != nil && file.Namespace != "" {
		cfg.Namespace = file.Namespace
	}
	cfg.Namespace = storage.SanitizeNamespace(cfg.Namespace)

	cfg.ApplyFile(file)

	if flags.Changed("backend") {
		if cfg.Backend, err = flags.GetString("backend"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("dir") {
		if cfg.StorageDir, err = flags.GetString("dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("database-url") {
		if cfg.DatabaseURL, err = flags.GetString("database-url"); err != nil {
			return nil, err
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv(databaseURLEnv)
	}
	if flags.Changed("delay") {
		if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// validate wraps configuration errors the same way for every command.
func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return nil
}

// setupLogger installs the sanitizing logger as the default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	switch cfg.LogFormat {
	case config.LogFormatJSON:
		logger = log.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	default:
		logger = log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// openStorage opens the durable adapter selected by cfg.
func openStorage(ctx context.Context, cfg *config.Config, consumerID string) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		opts := sqlite.DefaultOptions()
		opts.BusyTimeout = cfg.BusyTimeout
		opts.ConsumerID = consumerID
		store, err := sqlite.Open(ctx, cfg.StorageDir, cfg.Namespace, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.Namespace, postgres.Options{
			ConsumerID: consumerID,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, config.ErrInvalidBackend
	}
}

// openScheduler builds the scheduler for cfg. The returned release func
// closes the storage and is never nil. m may be nil.
func openScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (scheduler.Scheduler, func(), error) {
	opts := []scheduler.Option{
		scheduler.WithDelay(cfg.Delay),
		scheduler.WithBatchSize(cfg.BatchSize),
		scheduler.WithLogger(logger),
	}

	if cfg.Backend == config.BackendMemory {
		sched := scheduler.NewMemoryScheduler(opts...)
		if err := sched.SetNamespace(ctx, cfg.Namespace); err != nil {
			return nil, nil, err
		}
		return sched, func() {}, nil
	}

	store, err := openStorage(ctx, cfg, newConsumerID())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Backend, err)
	}
	logger.Debug("storage opened",
		"backend", cfg.Backend,
		"namespace", store.Namespace(),
	)

	release := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close storage", "error", err)
		}
	}
	return scheduler.NewDurableScheduler(metrics.Instrument(store, m), opts...), release, nil
}

// newConsumerID identifies this process in claimed_by.
func newConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString())
}
