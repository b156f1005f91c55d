package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nao1215/spiderq/internal/config"
	"github.com/nao1215/spiderq/internal/crawler"
	"github.com/nao1215/spiderq/internal/metrics"
	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/pipeline"
	"github.com/nao1215/spiderq/internal/report"
	"github.com/nao1215/spiderq/internal/scheduler"
)

// NewDrainCmd creates the drain command.
func NewDrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain [seed-url]...",
		Short: "Consume a namespace until it is empty",
		Long: `Drain runs consumers that claim batches until no request is pending.

Each claimed request is printed as a JSON line, or handed to --exec. The
command given to --exec receives the request as JSON on stdin and the URL
in SPIDERQ_URL; every line it prints is scheduled as a discovered link,
subject to --max-depth, the same-host rule and the configured patterns.

Examples:
  # Print every pending request, one batch per 2 seconds
  spiderq drain --delay 2s

  # Four consumers sharing one SQLite namespace
  spiderq drain --workers 4 --namespace shop

  # Seed, crawl with an external fetcher and expose metrics
  spiderq drain --exec ./fetch-links.sh --metrics-addr :9090 https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runDrainCmd,
	}

	cmd.Flags().Bool("force", false, "Claim without waiting for the throttle window")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Number of concurrent consumers")
	cmd.Flags().Int("max-requests", 0, "Maximum requests claimed per consumer (0 = unlimited)")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth, "Maximum depth of discovered requests (negative = unlimited)")
	cmd.Flags().Bool("cross-host", false, "Schedule discovered links on other hosts")
	cmd.Flags().Bool("purge", false, "Purge the namespace before draining")
	cmd.Flags().String("exec", "", "Shell command run for each request")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	// Report flags
	cmd.Flags().StringP("output", "o", "", "Write the run report to this file instead of stderr")
	cmd.Flags().BoolP("json", "j", false, "Write the run report as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Write the run report as Markdown (mutually exclusive with --json)")

	return cmd
}

// drainOptions are the drain flags that do not live in config.Config.
type drainOptions struct {
	crossHost  bool
	execCmd    string
	reportPath string
}

// runDrainCmd executes the drain command.
func runDrainCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildDrainConfig(cmd)
	if err != nil {
		return err
	}

	seeds, err := seedRequests(cfg, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)

		shutdown := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	sched, release, err := openScheduler(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer release()

	handler := printHandler(cmd.OutOrStdout())
	if opts.execCmd != "" {
		handler = execHandler(opts.execCmd)
	}

	group := pipeline.NewConsumerGroup(
		func(s scheduler.Scheduler, worker int) *crawler.Engine {
			return crawler.NewEngine(s, handler,
				crawler.WithMaxDepth(cfg.MaxDepth),
				crawler.WithMaxRequests(cfg.MaxRequests),
				crawler.WithBatchSize(cfg.BatchSize),
				crawler.WithForce(cfg.Force),
				crawler.WithCrossHost(opts.crossHost),
				crawler.WithIgnorePatterns(cfg.IgnorePatterns),
				crawler.WithFollowPatterns(cfg.FollowPatterns),
				crawler.WithLogger(logger.With("worker", worker)),
			)
		},
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithSchedulerFactory(workerSchedulers(cfg, sched, logger, m)),
		pipeline.WithGroupLogger(logger),
	)

	p := pipeline.New(pipeline.WithLogger(logger))
	if cfg.PurgeOnStart {
		p.AddStep(pipeline.NewPurgeStep())
	}
	if len(seeds) > 0 {
		p.AddStep(pipeline.NewSeedRequestsStep(seeds...))
	}
	p.AddStep(pipeline.NewDrainStep(group))

	run, runErr := p.Execute(ctx, sched)

	// The run may have been interrupted; the report still reflects it.
	stats, err := sched.Stats(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("failed to read queue stats", "error", err)
	}
	if err := writeRunReport(cmd, cfg, opts.reportPath, report.New(stats, run)); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("drain failed: %w", runErr)
	}
	return nil
}

// buildDrainConfig applies the drain flags on top of buildConfig.
func buildDrainConfig(cmd *cobra.Command) (*config.Config, drainOptions, error) {
	var opts drainOptions

	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, opts, err
	}

	flags := cmd.Flags()
	if cfg.Force, err = flags.GetBool("force"); err != nil {
		return nil, opts, err
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, opts, err
		}
	}
	if cfg.MaxRequests, err = flags.GetInt("max-requests"); err != nil {
		return nil, opts, err
	}
	if flags.Changed("max-depth") {
		if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
			return nil, opts, err
		}
	}
	if flags.Changed("purge") {
		if cfg.PurgeOnStart, err = flags.GetBool("purge"); err != nil {
			return nil, opts, err
		}
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, opts, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, opts, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, opts, err
	}

	if opts.crossHost, err = flags.GetBool("cross-host"); err != nil {
		return nil, opts, err
	}
	if opts.execCmd, err = flags.GetString("exec"); err != nil {
		return nil, opts, err
	}
	if opts.reportPath, err = flags.GetString("output"); err != nil {
		return nil, opts, err
	}

	if err := validate(cfg); err != nil {
		return nil, opts, err
	}
	return cfg, opts, nil
}

// workerSchedulers gives every extra consumer its own connection to the
// partition. The memory backend cannot be shared between instances, so
// all workers use the same scheduler.
func workerSchedulers(cfg *config.Config, shared scheduler.Scheduler, logger *slog.Logger, m *metrics.Metrics) pipeline.SchedulerFactory {
	if cfg.Backend == config.BackendMemory {
		return func(context.Context, int) (scheduler.Scheduler, func(), error) {
			return shared, nil, nil
		}
	}
	return func(ctx context.Context, _ int) (scheduler.Scheduler, func(), error) {
		return openScheduler(ctx, cfg, logger, m)
	}
}

// printHandler writes each request as a JSON line. Writes are serialized
// so concurrent consumers do not interleave lines.
func printHandler(w io.Writer) crawler.Handler {
	var mu sync.Mutex
	enc := json.NewEncoder(w)

	return func(_ context.Context, req *model.Request) ([]*model.Request, error) {
		mu.Lock()
		defer mu.Unlock()
		return nil, enc.Encode(req)
	}
}

// execHandler runs command through the shell for each request and turns
// every non-empty output line into a discovered request.
func execHandler(command string) crawler.Handler {
	return func(ctx context.Context, req *model.Request) ([]*model.Request, error) {
		payload, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}

		var stdout, stderr bytes.Buffer
		c := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // User-provided command is intentional
		c.Stdin = bytes.NewReader(payload)
		c.Stdout = &stdout
		c.Stderr = &stderr
		c.Env = append(os.Environ(), "SPIDERQ_URL="+req.URL)

		if err := c.Run(); err != nil {
			return nil, fmt.Errorf("%s: %w: %s", command, err, strings.TrimSpace(stderr.String()))
		}

		var discovered []*model.Request
		scanner := bufio.NewScanner(&stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			child, err := req.Child(line)
			if err != nil {
				continue
			}
			discovered = append(discovered, child)
		}
		return discovered, scanner.Err()
	}
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics server", "error", err)
		}
	}
}

// writeRunReport writes the report to path, or to stderr when path is empty.
func writeRunReport(cmd *cobra.Command, cfg *config.Config, path string, r *report.Report) error {
	output := cmd.ErrOrStderr()
	if path != "" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	if _, err := newReportWriter(output, cfg).Write(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// newReportWriter picks the writer for the configured format.
func newReportWriter(output io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
