package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/spiderq/internal/config"
)

// NewRootCmd creates the root command for spiderq.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spiderq",
		Short: "Persistent, throttled and deduplicating crawl request queue",
		Long: `spiderq keeps crawl requests in named queue partitions.

Requests are delivered in FIFO batches, at most once each. Durable backends
(sqlite, postgres) drop requests whose URL is already queued and survive
restarts; several processes may consume the same namespace concurrently.
A delay spaces successive batches of one consumer.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("log-format", config.DefaultLogFormat, "Log line format on stderr: text or json")
	flags.StringP("config", "c", "",
		"Configuration file path (default: .spiderq in the current directory, "+
			config.XDGConfigFile+" in "+config.XDGConfigDir()+", or .spiderq in the home directory)")
	flags.String("backend", config.DefaultBackend, "Storage backend: memory, sqlite or postgres")
	flags.String("dir", config.XDGDataDir(), "Directory holding SQLite queue files")
	flags.String("database-url", "", "PostgreSQL connection string (or "+databaseURLEnv+")")
	flags.String("namespace", config.DefaultNamespace, "Queue partition to operate on")
	flags.Duration("delay", config.DefaultDelay, "Minimum spacing between throttled batches")
	flags.Int("batch", config.DefaultBatchSize, "Number of requests claimed per batch")

	// Add subcommands
	cmd.AddCommand(NewPushCmd())
	cmd.AddCommand(NewPullCmd())
	cmd.AddCommand(NewDrainCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
