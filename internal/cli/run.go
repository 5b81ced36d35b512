package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/graphbatch/internal/artifact"
	"github.com/rshade/graphbatch/internal/backend"
	"github.com/rshade/graphbatch/internal/config"
	"github.com/rshade/graphbatch/internal/dispatch"
	"github.com/rshade/graphbatch/internal/logging"
	"github.com/rshade/graphbatch/internal/record"
	"github.com/rshade/graphbatch/internal/source"
	"github.com/rshade/graphbatch/internal/tui"
)

// runFlags holds the flag values for the run command.
type runFlags struct {
	limit       int
	workers     int
	queueSize   int
	taskTimeout string
	retries     int
	source      string
	format      string
	table       string
	noProgress  bool
	report      string
	strict      bool
	dryRun      bool
}

// NewRunCmd creates the run command, which feeds every selected record to
// the graph parser through the worker pool.
func NewRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate graphs for the selected records",
		Long: `Load records from the configured source, drop incomplete and duplicate rows,
and run the graph parser once per record with a fixed number of workers.

Failed records do not stop the run; they are listed in the summary and in the
optional JSON report. Use --strict to turn any failure into a non-zero exit.`,
		Example: `  # Process everything with one worker per CPU
  graphbatch run

  # Process the first 50 records with 4 workers and a 2 minute timeout each
  graphbatch run --limit 50 --workers 4 --task-timeout 2m

  # Show what would be processed without running the parser
  graphbatch run --source functions.jsonl --dry-run`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeRun(cmd, flags)
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", 0, "process at most this many records (0 = all)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "number of concurrent parser invocations (default: config, then CPU count)")
	cmd.Flags().IntVar(&flags.queueSize, "queue-size", 0, "bound of the task queue (default: 2x workers)")
	cmd.Flags().StringVar(&flags.taskTimeout, "task-timeout", "", "per-record timeout, e.g. 90s (0 = none)")
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "extra attempts for a failed record")
	cmd.Flags().StringVar(&flags.source, "source", "", "record source: a file path or a postgres:// DSN")
	cmd.Flags().StringVar(&flags.format, "format", "",
		"source format: parquet, csv, jsonl, sqlite, postgres (default: inferred)")
	cmd.Flags().StringVar(&flags.table, "table", "", "table name for database sources")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "disable progress reporting")
	cmd.Flags().StringVar(&flags.report, "report", "", "write a JSON run report to this path")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "exit with code 4 when any record fails")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "load and select records without running the parser")

	return cmd
}

// applyRunFlags overlays explicitly set flags onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) {
	changed := cmd.Flags().Changed

	if changed("limit") {
		cfg.Source.Limit = flags.limit
	}
	if changed("workers") {
		cfg.Dispatch.Workers = flags.workers
	}
	if changed("queue-size") {
		cfg.Dispatch.QueueSize = flags.queueSize
	}
	if changed("task-timeout") {
		cfg.Dispatch.TaskTimeout = flags.taskTimeout
	}
	if changed("retries") {
		cfg.Dispatch.MaxRetries = flags.retries
	}
	if changed("source") {
		if isDSN(flags.source) {
			cfg.Source.DSN = flags.source
			cfg.Source.Path = ""
		} else {
			cfg.Source.Path = flags.source
			cfg.Source.DSN = ""
		}
	}
	if changed("format") {
		cfg.Source.Format = flags.format
	}
	if changed("table") {
		cfg.Source.Table = flags.table
	}
	if changed("no-progress") {
		cfg.Progress.Disabled = flags.noProgress
	}
}

func isDSN(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// describeSource names the source in logs and reports without leaking DSN credentials.
func describeSource(cfg config.SourceConfig) string {
	if cfg.DSN == "" {
		return cfg.Path
	}
	format := cfg.Format
	if format == "" {
		format = config.FormatPostgres
	}
	return format + ":" + cfg.Table
}

func sourceOptions(cfg config.SourceConfig) source.Options {
	return source.Options{
		Format: cfg.Format,
		Path:   cfg.Path,
		DSN:    cfg.DSN,
		Table:  cfg.Table,
		Columns: source.Columns{
			Content: cfg.Columns.Content,
			Group:   cfg.Columns.Group,
			ID:      cfg.Columns.ID,
		},
	}
}

func artifactOptions(cfg config.ArtifactConfig) artifact.Options {
	return artifact.Options{
		Backend:   cfg.Backend,
		Dir:       cfg.Dir,
		CacheSize: cfg.CacheSize,
		S3: artifact.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		},
	}
}

func backendOptions(cfg config.BackendConfig, runID string) backend.Options {
	return backend.Options{
		Command:           cfg.Command,
		Args:              cfg.Args,
		VersionArgs:       cfg.VersionArgs,
		VersionConstraint: cfg.VersionConstraint,
		WorkDir:           cfg.WorkDir,
		InputExt:          cfg.InputExt,
		SkipExisting:      cfg.SkipExisting,
		KeepWorkDir:       cfg.KeepWorkDir,
		RunID:             runID,
	}
}

func dispatchOptions(cfg *config.Config) dispatch.Options {
	// Durations were checked by Validate.
	timeout, _ := cfg.TaskTimeout()
	retryBackoff, _ := cfg.RetryBackoff()
	return dispatch.Options{
		Workers:      cfg.Dispatch.Workers,
		QueueSize:    cfg.Dispatch.QueueSize,
		TaskTimeout:  timeout,
		MaxRetries:   cfg.Dispatch.MaxRetries,
		RetryBackoff: retryBackoff,
	}
}

// executeRun is the body of the run command.
//
//nolint:funlen // Linear pipeline; splitting it hides the exit-code mapping.
func executeRun(cmd *cobra.Command, flags runFlags) error {
	started := time.Now()
	cfg := *config.GetGlobalConfig()
	applyRunFlags(cmd, &cfg, flags)

	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.FromContext(ctx)
	runID := logging.GetOrGenerateTraceID(ctx)
	sourceName := describeSource(cfg.Source)

	raws, err := source.Load(ctx, sourceOptions(cfg.Source))
	if err != nil {
		return &ExitError{Code: ExitSourceLoad, Reason: "cannot load records", Err: err}
	}

	sel, err := record.Select(raws, cfg.Source.Limit)
	if err != nil {
		return usageError(err)
	}
	if sel.Excluded > 0 || sel.Duplicates > 0 {
		log.Warn().
			Ctx(ctx).
			Int("excluded", sel.Excluded).
			Int("duplicates", sel.Duplicates).
			Msg("skipping incomplete or duplicate records")
	}
	log.Info().
		Ctx(ctx).
		Str("source", sourceName).
		Int("loaded", sel.Loaded).
		Int("selected", len(sel.Records)).
		Msg("records selected")

	if flags.dryRun {
		cmd.Printf("%d records selected from %s (loaded %d, excluded %d, duplicates %d, truncated %d)\n",
			len(sel.Records), sourceName, sel.Loaded, sel.Excluded, sel.Duplicates, sel.Truncated)
		return nil
	}

	interval, _ := cfg.ProgressInterval()
	reporterOpts := tui.ReporterOptions{
		Disabled: cfg.Progress.Disabled,
		Interval: interval,
		Output:   stderrFile(cmd),
		Cancel:   cancel,
	}
	if debug, _ := cmd.Flags().GetBool("debug"); !debug && cfg.Logging.File == "" && tui.Interactive(reporterOpts) {
		var runLogs *logging.LogPathResult
		ctx, runLogs = redirectRunLogs(ctx, cmd, config.DefaultLogFile())
		defer func() { _ = runLogs.Close() }()
		log = logging.FromContext(ctx)
	}

	store, err := artifact.Open(ctx, artifactOptions(cfg.Artifacts))
	if err != nil {
		return &ExitError{Code: ExitDispatch, Reason: "cannot open artifact store", Err: err}
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Warn().Ctx(ctx).Err(closeErr).Msg("closing artifact store")
		}
	}()

	parser, err := backend.NewExec(backendOptions(cfg.Backend, runID), store)
	if err != nil {
		return &ExitError{Code: ExitDispatch, Reason: "cannot configure backend", Err: err}
	}
	if cfg.Backend.VersionConstraint != "" {
		if _, vErr := parser.CheckVersion(ctx); vErr != nil {
			return &ExitError{Code: ExitDispatch, Reason: "backend version check failed", Err: vErr}
		}
	}

	d, err := dispatch.New(parser, dispatchOptions(&cfg))
	if err != nil {
		return &ExitError{Code: ExitDispatch, Reason: "cannot start worker pool", Err: err}
	}
	effective := d.Options()
	log.Debug().
		Ctx(ctx).
		Int("workers", effective.Workers).
		Int("queue_size", effective.QueueSize).
		Dur("task_timeout", effective.TaskTimeout).
		Int("max_retries", effective.MaxRetries).
		Msg("worker pool configured")

	reporter := tui.NewReporter(*log, reporterOpts)
	reporter.Start(len(sel.Records))
	d.WithProgressCallback(reporter.Update).WithCompletionCallback(reporter.Finish)

	res, runErr := d.Run(ctx, sel.Records)

	report := tui.NewReport(runID, sourceName, started, sel, res)
	if err = tui.RenderSummary(cmd.OutOrStdout(), report); err != nil {
		log.Warn().Ctx(ctx).Err(err).Msg("rendering summary")
	}
	if flags.report != "" {
		if err = tui.WriteReport(flags.report, report); err != nil {
			return &ExitError{Code: ExitDispatch, Reason: "cannot write report", Err: err}
		}
		log.Info().Ctx(ctx).Str("path", flags.report).Msg("run report written")
	}

	if runErr != nil {
		reason := "run failed"
		if errors.Is(runErr, context.Canceled) {
			reason = "run cancelled"
		}
		return &ExitError{Code: ExitDispatch, Reason: reason, Err: runErr}
	}
	if flags.strict && len(res.Failures) > 0 {
		return &ExitError{
			Code:   ExitFailures,
			Reason: fmt.Sprintf("%d of %d records failed", len(res.Failures), len(sel.Records)),
		}
	}
	return nil
}
