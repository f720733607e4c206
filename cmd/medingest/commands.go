package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/poiesic/medingest"
	"github.com/poiesic/medingest/config"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/ingestion"
	"github.com/poiesic/medingest/reindex"
	"github.com/urfave/cli/v2"
)

// errInterrupted is returned when a followed job is interrupted twice.
var errInterrupted = errors.New("interrupted")

// runtime carries state from Before to the command actions.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func() error

	// signals overrides os/signal delivery in tests.
	signals chan os.Signal
}

func (rt *runtime) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	rt.logger, rt.cleanup = config.SetupLogger(cfg.Log.File, level)
	slog.SetDefault(rt.logger)
	rt.cfg = cfg
	return nil
}

func (rt *runtime) teardown(c *cli.Context) error {
	if rt.cleanup != nil {
		return rt.cleanup()
	}
	return nil
}

// open opens the database and recovers persisted jobs.
func (rt *runtime) open(ctx context.Context) (*medingest.Database, error) {
	db, err := medingest.Open(rt.cfg, medingest.WithLogger(rt.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	n, err := db.Service().Recover(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to recover jobs: %w", err)
	}
	if n > 0 {
		rt.logger.Info("recovered running jobs", "count", n)
	}
	return db, nil
}

func (rt *runtime) runCommand(c *cli.Context) error {
	ctx := c.Context
	src := core.SourceConfig{
		Kind:             c.String("kind"),
		Name:             c.String("name"),
		Query:            c.String("query"),
		SubjectAreas:     c.StringSlice("subject"),
		MaxDocuments:     c.Int("max-docs"),
		QualityThreshold: c.Float64("threshold"),
		Path:             c.String("path"),
	}
	if t := c.Timestamp("from"); t != nil {
		src.DateFrom = *t
	}
	if t := c.Timestamp("to"); t != nil {
		src.DateTo = *t
	}

	db, err := rt.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.Service().StartIngestion(ctx, src, nil)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Started job %s\n", id)
	return rt.follow(c, db, id)
}

func (rt *runtime) resumeCommand(c *cli.Context) error {
	db, err := rt.open(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	id := c.String("job")
	if err := db.Service().Resume(c.Context, id); err != nil {
		return fmt.Errorf("failed to resume job: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Resumed job %s\n", id)
	return rt.follow(c, db, id)
}

func (rt *runtime) cancelCommand(c *cli.Context) error {
	db, err := rt.open(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	id := c.String("job")
	if err := db.Service().Cancel(c.Context, id); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	if err := db.Service().Wait(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Cancelled job %s\n", id)
	return nil
}

func (rt *runtime) resubmitCommand(c *cli.Context) error {
	db, err := rt.open(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	old := c.String("job")
	id, err := db.Service().Resubmit(c.Context, old)
	if err != nil {
		return fmt.Errorf("failed to resubmit job: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Resubmitted job %s as %s\n", old, id)
	return rt.follow(c, db, id)
}

func (rt *runtime) statusCommand(c *cli.Context) error {
	db, err := rt.open(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	if id := c.String("job"); id != "" {
		status, err := db.Service().GetStatus(c.Context, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	jobs, err := db.Service().ListJobs(c.Context)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(c.App.Writer, "No jobs")
		return nil
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tSOURCE\tWRITTEN\tDUPLICATES\tFAILED\tCREATED")
	for _, s := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			s.ID, s.Name, s.State, s.Source.Kind,
			s.Counters.Written, s.Counters.Duplicates, s.Counters.Failed,
			s.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (rt *runtime) partitionsCommand(c *cli.Context) error {
	db, err := rt.open(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	partitions, err := db.Partitions().ListPartitions(c.Context)
	if err != nil {
		return err
	}
	if len(partitions) == 0 {
		fmt.Fprintln(c.App.Writer, "No partitions")
		return nil
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTITION\tRECORDS\tCREATED")
	for _, p := range partitions {
		ids, err := db.Records().ListPartitionRecords(c.Context, p.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, len(ids), p.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (rt *runtime) reindexCommand(c *cli.Context) error {
	cfg := reindex.DefaultConfig()
	cfg.BatchSize = c.Int("batch-size")
	cfg.ReportInterval = c.Int("report-interval")
	cfg.Partition = c.String("partition")
	cfg.Policy.MaxAttempts = c.Int("max-retries")
	cfg.Policy.BaseDelay = c.Duration("retry-delay")

	db, err := rt.open(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := db.Reindexer(cfg, c.App.ErrWriter)
	if err != nil {
		return err
	}
	if _, err := r.Run(c.Context); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

// follow prints progress until the job's run loop exits. The first
// interrupt pauses the job; a second one stops following.
func (rt *runtime) follow(c *cli.Context, db *medingest.Database, id string) error {
	if c.Bool("detach") {
		return nil
	}
	out := c.App.Writer
	svc := db.Service()

	sigs := rt.signals
	if sigs == nil {
		sigs = make(chan os.Signal, 2)
		signal.Notify(sigs, os.Interrupt)
		defer signal.Stop(sigs)
	}

	done := make(chan error, 1)
	go func() { done <- svc.Wait(context.WithoutCancel(c.Context), id) }()

	ticker := time.NewTicker(max(c.Duration("interval"), 10*time.Millisecond))
	defer ticker.Stop()

	pausing := false
	for {
		select {
		case err := <-done:
			if err != nil {
				return err
			}
			status, err := svc.GetStatus(c.Context, id)
			if err != nil {
				return err
			}
			printSummary(out, status)
			if status.State == core.JobStateFailed {
				return fmt.Errorf("job %s failed", id)
			}
			return nil
		case <-ticker.C:
			if status, err := svc.GetStatus(c.Context, id); err == nil {
				printProgress(out, status)
			}
		case <-sigs:
			if pausing {
				return errInterrupted
			}
			pausing = true
			fmt.Fprintln(out, "\nPausing at the next batch boundary (interrupt again to exit)")
			if err := svc.Pause(c.Context, id); err != nil {
				rt.logger.Warn("failed to pause job", "job", id, "err", err)
			}
		}
	}
}

func printProgress(w io.Writer, s ingestion.Status) {
	fmt.Fprintf(w, "%s batch %d: fetched %d, written %d, duplicates %d, failed %d (%.1f records/min)\n",
		s.State, s.Sequence, s.Counters.Fetched, s.Counters.Written, s.Counters.Duplicates,
		s.Counters.Failed, s.Summary.RecordsPerMinute)
}

func printSummary(w io.Writer, s ingestion.Status) {
	fmt.Fprintf(w, "Job %s %s after %d batches\n", s.ID, s.State, s.Sequence)
	fmt.Fprintf(w, "  fetched %d, written %d, duplicates %d, failed %d, warnings %d\n",
		s.Counters.Fetched, s.Counters.Written, s.Counters.Duplicates, s.Counters.Failed, s.Counters.Warnings)
	fmt.Fprintf(w, "  success rate %.1f%% in %.1f minutes\n", s.Summary.SuccessRate*100, s.Summary.ProcessingMinutes)
	if s.LastError != nil {
		fmt.Fprintf(w, "  last error (%s): %s\n", s.LastError.Kind, s.LastError.Message)
		if s.LastError.Hint != "" {
			fmt.Fprintf(w, "  hint: %s\n", s.LastError.Hint)
		}
	}
	if s.State == core.JobStatePaused {
		fmt.Fprintf(w, "Resume with: medingest resume --job %s\n", s.ID)
	}
}
