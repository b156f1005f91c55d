package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/spiderq/internal/pipeline"
)

// NewPurgeCmd creates the purge command.
func NewPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every request of a namespace",
		Long: `Purge removes all pending and taken requests of a namespace.

URLs that were claimed before can be pushed again afterwards. Other
namespaces are not affected.`,
		Args: cobra.NoArgs,
		RunE: runPurgeCmd,
	}
}

// runPurgeCmd executes the purge command.
func runPurgeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sched, release, err := openScheduler(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer release()

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(pipeline.NewPurgeStep())
	if _, err := p.Execute(ctx, sched); err != nil {
		return fmt.Errorf("failed to purge namespace: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Purged namespace %s\n", sched.Namespace())
	return nil
}
