package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/triage/adapter"
	triageconfig "github.com/pithecene-io/triage/cli/config"
	"github.com/pithecene-io/triage/lode"
	"github.com/pithecene-io/triage/log"
	"github.com/pithecene-io/triage/metrics"
	"github.com/pithecene-io/triage/runtime"
	"github.com/pithecene-io/triage/types"
)

// publishTimeout bounds summary and adapter delivery after a run.
const publishTimeout = time.Minute

// RunCommand returns the run command.
// This is the only command that mutates storage.
func RunCommand() *cli.Command {
	flags := append(ConfigFlags(),
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run ID (default: generated)",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: fmt.Sprintf("Images per classification request (default %d)", runtime.DefaultBatchSize),
		},
		&cli.DurationFlag{
			Name:  "batch-delay",
			Usage: fmt.Sprintf("Pause between requests (default %s)", runtime.DefaultBatchDelay),
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the JSON run report to this path (- for stderr)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output",
		},
	)
	return &cli.Command{
		Name:   "run",
		Usage:  "Classify every pending image once and file it as processed or failed",
		Flags:  flags,
		Action: runAction,
	}
}

// resolveRunConfig layers run flags over the config file, fills defaults
// and validates.
func resolveRunConfig(c *cli.Context) (*triageconfig.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	cfg.RunID = resolveString(c, "run-id", cfg.RunID)
	cfg.Batch.Size = resolveInt(c, "batch-size", cfg.Batch.Size)
	if c.IsSet("batch-delay") {
		cfg.Batch.Delay = &triageconfig.Duration{Duration: c.Duration("batch-delay")}
	}
	cfg.Logging.Level = resolveString(c, "log-level", cfg.Logging.Level)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RunID == "" {
		cfg.RunID = newRunID(time.Now())
	}
	return cfg, nil
}

// newRunID builds a sortable, unique run identifier.
func newRunID(now time.Time) string {
	return fmt.Sprintf("run-%s-%s", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

func runAction(c *cli.Context) error {
	cfg, err := resolveRunConfig(c)
	if err != nil {
		return invalidConfig(err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runMeta := &types.RunMeta{RunID: cfg.RunID, Backend: cfg.Storage.Backend}
	logger, err := buildLogger(cfg, runMeta, c.App.ErrWriter)
	if err != nil {
		return invalidConfig(err)
	}
	defer func() { _ = logger.Sync() }()

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage backend: %v", err), runtime.ExitCodeInfrastructure)
	}
	classifier, err := buildClassifier(cfg)
	if err != nil {
		return invalidConfig(err)
	}
	lock, err := buildLock(cfg)
	if err != nil {
		return invalidConfig(err)
	}
	defer func() { _ = lock.close() }()
	pub, err := buildAdapter(cfg)
	if err != nil {
		return invalidConfig(err)
	}
	if pub != nil {
		defer func() { _ = pub.Close() }()
	}
	store, err := buildSummaryStore(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("summary store: %v", err), runtime.ExitCodeInfrastructure)
	}

	collector := metrics.NewCollector(cfg.Storage.Backend, cfg.RunID)
	orchestrator, err := runtime.NewRunOrchestrator(&runtime.RunConfig{
		RunMeta:    runMeta,
		Backend:    backend,
		Classifier: classifier,
		BatchSize:  cfg.Batch.Size,
		BatchDelay: cfg.BatchDelay(),
		Lock:       lock.lock,
		Collector:  collector,
		Logger:     logger,
	})
	if err != nil {
		return invalidConfig(err)
	}

	result, runErr := orchestrator.Execute(ctx)
	var status runtime.OutcomeStatus
	if result != nil && result.Outcome != nil {
		status = result.Outcome.Status
	}
	code := runtime.ExitCodeFor(status, runErr)
	report := runtime.BuildRunReport(result, collector.Snapshot(), code)

	if path := c.String("report"); path != "" {
		if err := runtime.WriteRunReport(report, path); err != nil {
			logger.Warn("failed to write run report", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	// A locked run did nothing; the run holding the lock reports for the day.
	if status != runtime.OutcomeLocked {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		storeSummary(pubCtx, store, report, logger)
		publishCompletion(pubCtx, pub, report, logger)
		cancel()
	}

	if !c.Bool("quiet") {
		printRunResult(c.App.Writer, report)
	}

	if code != runtime.ExitCodeCompleted {
		msg := report.Message
		if runErr != nil {
			msg = runErr.Error()
		}
		return cli.Exit(msg, code)
	}
	return nil
}

// storeSummary persists the report. Failures are logged, never fatal.
func storeSummary(ctx context.Context, store *lode.SummaryStore, report *runtime.RunReport, logger *log.Logger) {
	if store == nil {
		return
	}
	path, err := store.Put(ctx, report)
	if err != nil {
		logger.Warn("failed to store run summary", map[string]any{
			"error": err.Error(),
		})
		return
	}
	logger.Debug("stored run summary", map[string]any{
		"path": path,
	})
}

// publishCompletion notifies the configured adapter. Failures are logged,
// never fatal.
func publishCompletion(ctx context.Context, pub adapter.Adapter, report *runtime.RunReport, logger *log.Logger) {
	if pub == nil {
		return
	}
	event := adapter.NewRunCompletedEvent(report, time.Now())
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish run completion", map[string]any{
			"error": err.Error(),
		})
	}
}

func printRunResult(w io.Writer, report *runtime.RunReport) {
	fmt.Fprintf(w, "\nrun_id=%s, backend=%s, day=%s, outcome=%s, duration=%dms\n",
		report.RunID,
		report.Backend,
		report.Day,
		report.Outcome,
		report.DurationMs,
	)

	fmt.Fprintf(w, "\n=== Run Result ===\n")
	fmt.Fprintf(w, "Outcome:      %s\n", report.Outcome)
	fmt.Fprintf(w, "Message:      %s\n", report.Message)
	if report.Counts != nil {
		fmt.Fprintf(w, "Discovered:   %d\n", report.Counts.Discovered)
		fmt.Fprintf(w, "Processed:    %d\n", report.Counts.Processed)
		fmt.Fprintf(w, "Failed:       %d\n", report.Counts.Failed)
		fmt.Fprintf(w, "Move failed:  %d\n", report.Counts.MoveFailed)
		fmt.Fprintf(w, "Log failures: %d\n", report.Counts.LogFailures)
	}

	if len(report.MissingLogEntries) > 0 {
		fmt.Fprintf(w, "\n=== Missing Audit Rows ===\n")
		for _, key := range report.MissingLogEntries {
			fmt.Fprintf(w, "  - %s\n", key)
		}
	}
}
