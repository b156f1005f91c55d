package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/spiderq/internal/config"
	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/pipeline"
)

// NewPushCmd creates the push command.
func NewPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push [url]...",
		Short: "Schedule URLs into a namespace",
		Long: `Push schedules one request per URL.

Durable backends skip URLs that are already queued in the namespace, even
if they were claimed, until the namespace is purged. Headers from the
configuration file are attached to every request.

Examples:
  # Push two URLs into the default namespace
  spiderq push https://example.com/ https://example.com/about

  # Push a list of URLs, one per line ("-" reads stdin)
  spiderq push --list urls.txt --namespace shop

  # Start the namespace over before pushing
  spiderq push --purge https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runPushCmd,
	}

	cmd.Flags().StringP("list", "l", "", "File with one URL per line")
	cmd.Flags().Bool("purge", false, "Purge the namespace before pushing")

	return cmd
}

// runPushCmd executes the push command.
func runPushCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("purge") {
		if cfg.PurgeOnStart, err = cmd.Flags().GetBool("purge"); err != nil {
			return err
		}
	}
	if err := validate(cfg); err != nil {
		return err
	}

	listPath, err := cmd.Flags().GetString("list")
	if err != nil {
		return err
	}

	urls := append([]string(nil), args...)
	if listPath != "" {
		listed, err := readURLList(cmd, listPath)
		if err != nil {
			return err
		}
		urls = append(urls, listed...)
	}
	if len(urls) == 0 {
		return errors.New("no URLs provided (pass them as arguments or with --list)")
	}

	reqs, err := seedRequests(cfg, urls)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg)
	if cfg.Backend == config.BackendMemory {
		logger.Warn("the memory backend does not keep requests after this command exits")
	}

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
	if cfg.PurgeOnStart {
		p.AddStep(pipeline.NewPurgeStep())
	}
	p.AddStep(pipeline.NewSeedRequestsStep(reqs...))

	run, err := p.Execute(ctx, sched)
	if err != nil {
		return fmt.Errorf("failed to push requests: %w", err)
	}

	stats, err := sched.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue stats: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d request(s) to %s (pending: %d)\n",
		run.Seeded, stats.Namespace, stats.Pending)
	return nil
}

// seedRequests builds depth-0 requests carrying the configured headers.
func seedRequests(cfg *config.Config, urls []string) ([]*model.Request, error) {
	reqs := make([]*model.Request, 0, len(urls))
	for _, u := range urls {
		req, err := model.NewRequest(u)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", u, err)
		}
		for name, value := range cfg.Headers {
			req.SetHeader(name, value)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// readURLList reads one URL per line. Blank lines and lines starting
// with # are skipped. "-" reads the command's input.
func readURLList(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to open URL list: %w", err)
		}
		defer f.Close()
		r = f
	}

	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}
