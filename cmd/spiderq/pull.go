package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/spiderq/internal/storage"
)

// NewPullCmd creates the pull command.
func NewPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Claim one batch of requests",
		Long: `Pull claims up to -n pending requests and prints them as JSON lines.

Claimed requests are marked taken and are never delivered again. The
configured delay is not enforced across separate pull invocations; use
drain for a throttled consumer.

Examples:
  spiderq pull -n 10 --namespace shop | my-fetcher`,
		Args: cobra.NoArgs,
		RunE: runPullCmd,
	}

	cmd.Flags().IntP("count", "n", 0, "Number of requests to claim (default: --batch)")

	return cmd
}

// runPullCmd executes the pull command.
func runPullCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		return err
	}

	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("invalid count %d: must not be negative", count)
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

	// A non-positive count falls back to the configured batch size.
	reqs, err := sched.NextRequests(ctx, count)
	var skipped *storage.SkippedError
	if errors.As(err, &skipped) {
		logger.Warn("skipped malformed records",
			"namespace", sched.Namespace(),
			"count", len(skipped.Records),
			"error", skipped,
		)
	} else if err != nil {
		return fmt.Errorf("failed to pull requests: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, req := range reqs {
		if err := enc.Encode(req); err != nil {
			return fmt.Errorf("failed to write request: %w", err)
		}
	}
	return nil
}
