package ingestion

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/dedup"
	"github.com/poiesic/medingest/retry"
	"github.com/poiesic/medingest/source"
)

// errJobTerminal stops a registry update on a job that already ended.
var errJobTerminal = errors.New("job is terminal")

// runHandle controls one run loop of a job.
type runHandle struct {
	stop  context.CancelFunc // end the run at the next batch boundary
	abort context.CancelFunc // end the run and cancel in-flight work
	done  chan struct{}
}

func (h *runHandle) wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeAccepted
	outcomeDuplicate
	outcomeFailed
)

type recordResult struct {
	outcome  outcome
	scored   ScoredRecord
	warnings int64
	errs     []error // failure or degradation causes
}

// controller runs one job until it completes, fails or is stopped.
// stopCtx ends at pause, cancel and shutdown; workCtx only at cancel.
type controller struct {
	svc     *Service
	entry   *jobEntry
	jobID   string
	stopCtx context.Context
	workCtx context.Context
	logger  *slog.Logger

	slots     chan struct{}
	threshold float64
	cursor    core.Cursor
	sequence  uint64
	counters  core.Counters
}

func (c *controller) run() {
	job := c.entry.snapshot()
	c.threshold = job.Source.QualityThreshold
	c.logger.Info("job run started", "source", job.Source.Kind, "subjects", job.SubjectAreas)

	adapter, err := c.svc.sources.Open(job.Source)
	if err != nil {
		c.fail(err)
		return
	}
	if closer, ok := adapter.(io.Closer); ok {
		defer closer.Close()
	}

	pool, err := ants.NewPool(c.svc.cfg.workers, ants.WithNonblocking(true))
	if err != nil {
		c.fail(core.MarkFatal(err, "check the worker count"))
		return
	}
	defer pool.Release()
	c.slots = make(chan struct{}, c.svc.cfg.workers)

	cp, err := c.svc.registry.LoadCheckpoint(c.workCtx, c.jobID)
	if err != nil {
		if c.workCtx.Err() != nil {
			return
		}
		c.fail(core.MarkFatal(errors.Wrap(err, "loading checkpoint"), "the checkpoint store may be corrupt"))
		return
	}
	if cp != nil {
		c.cursor, c.sequence, c.counters = cp.Cursor, cp.Sequence, cp.Counters
		if cp.Exhausted {
			c.complete()
			return
		}
		c.logger.Info("resuming from checkpoint", "sequence", cp.Sequence, "written", cp.Counters.Written)
	}

	for {
		if c.stopCtx.Err() != nil {
			c.logger.Info("job run stopped at batch boundary", "sequence", c.sequence)
			return
		}

		batch, err := c.fetch(adapter)
		if err != nil {
			if c.stopCtx.Err() != nil {
				c.logger.Info("job run stopped during fetch", "sequence", c.sequence)
				return
			}
			c.fail(err)
			return
		}

		results := c.process(pool, batch)
		accepted, delta, subjects, errs := tally(results)
		next := &core.Checkpoint{
			JobID:     c.jobID,
			Cursor:    batch.Next,
			Counters:  c.counters.Add(delta),
			Sequence:  c.sequence + 1,
			Exhausted: !batch.HasMore,
		}

		res, err := c.svc.writer.CommitBatch(c.workCtx, c.jobID, accepted, next)
		if err != nil {
			if c.workCtx.Err() != nil {
				c.logger.Info("in-flight batch abandoned", "sequence", next.Sequence)
				return
			}
			c.fail(err)
			return
		}

		c.cursor, c.sequence, c.counters = res.Checkpoint.Cursor, res.Checkpoint.Sequence, res.Checkpoint.Counters
		c.progress(res.Checkpoint, subjects, errs)
		c.logger.Debug("batch committed",
			"sequence", res.Checkpoint.Sequence,
			"fetched", len(batch.Records),
			"written", res.Written,
			"duplicates", delta.Duplicates+int64(res.Duplicates),
			"failed", delta.Failed)

		if !batch.HasMore {
			c.complete()
			return
		}
	}
}

// fetch pulls the next batch, retrying transient source failures.
func (c *controller) fetch(adapter source.Adapter) (*source.Batch, error) {
	policy := c.svc.cfg.fetchPolicy
	policy.Retryable = core.IsRetryable
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("fetch failed, retrying", "attempt", attempt, "delay", delay, "err", err)
	}

	var batch *source.Batch
	err := retry.Do(c.stopCtx, policy, func(ctx context.Context) error {
		fctx, cancel := context.WithTimeout(ctx, c.svc.cfg.fetchTimeout)
		defer cancel()
		b, err := adapter.FetchBatch(fctx, c.cursor, c.svc.cfg.batchSize)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = core.MarkTransientSource(err)
			}
			return err
		}
		if b == nil {
			b = &source.Batch{Next: c.cursor}
		}
		batch = b
		return nil
	})
	if err != nil {
		if c.stopCtx.Err() != nil {
			return nil, err
		}
		switch {
		case errors.Is(err, retry.ErrExhausted):
			err = core.MarkFatal(errors.Wrap(err, "source unreachable"),
				"check network access to the source, then resubmit the job")
		case core.ClassifyFailure(err) != core.FailureFatalConfiguration:
			err = core.MarkFatal(err, "")
		}
		return nil, err
	}
	return batch, nil
}

// process runs per-record work on the pool. Fingerprinting, validation and
// in-batch duplicate claims happen in source order so that the first of
// several identical records is the one kept. Records unfinished when the
// batch timeout expires are failed, including records still waiting for a
// free worker.
func (c *controller) process(pool *ants.Pool, batch *source.Batch) []recordResult {
	ctx, cancel := context.WithTimeout(c.workCtx, c.svc.cfg.batchTimeout)
	defer cancel()

	n := len(batch.Records) + len(batch.Invalid)
	results := make([]recordResult, n)
	claims := dedup.NewBatchSet(len(batch.Records))

	var (
		mu        sync.Mutex
		finalized bool
		wg        sync.WaitGroup
	)
submit:
	for i := range batch.Records {
		rec := batch.Records[i]
		rec.Fingerprint = core.FingerprintOf(&rec)
		results[i].scored.Record = rec

		if err := core.ValidateRecord(&rec); err != nil {
			results[i].outcome = outcomeFailed
			results[i].errs = []error{errors.Mark(err, core.ErrValidation)}
			continue
		}
		if !claims.ClaimAll(core.IdentityKeys(&rec)) {
			results[i].outcome = outcomeDuplicate
			continue
		}

		// A slot is held until the task returns, so a task that ignores its
		// context keeps its slot and the pool never blocks Submit.
		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			break submit
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			defer func() { <-c.slots }()
			res := c.processRecordSafe(ctx, rec)
			mu.Lock()
			if !finalized {
				results[i] = res
			}
			mu.Unlock()
		})
		if err != nil {
			<-c.slots
			wg.Done()
			mu.Lock()
			results[i] = recordResult{outcome: outcomeFailed, scored: ScoredRecord{Record: rec}, errs: []error{err}}
			mu.Unlock()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("batch deadline reached with records in flight", "err", ctx.Err())
	}

	mu.Lock()
	defer mu.Unlock()
	finalized = true
	out := make([]recordResult, n)
	for i, r := range results[:len(batch.Records)] {
		if r.outcome == outcomePending {
			r.outcome = outcomeFailed
			r.scored.Record = batch.Records[i]
			r.errs = []error{errors.Wrapf(ErrBatchDeadline, "record %s", core.FingerprintOf(&batch.Records[i]))}
		}
		out[i] = r
	}
	for i, invalid := range batch.Invalid {
		out[len(batch.Records)+i] = recordResult{
			outcome: outcomeFailed,
			errs:    []error{errors.Mark(invalid, core.ErrValidation)},
		}
	}
	return out
}

// processRecordSafe turns a panic in a scorer or classifier into a failed
// record.
func (c *controller) processRecordSafe(ctx context.Context, rec core.Record) (res recordResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("record processing panicked", "record", rec.Fingerprint, "panic", r)
			res = recordResult{
				outcome: outcomeFailed,
				scored:  ScoredRecord{Record: rec},
				errs:    []error{errors.Newf("record %s: panic: %v", rec.Fingerprint, r)},
			}
		}
	}()
	return c.processRecord(ctx, rec)
}

func (c *controller) processRecord(ctx context.Context, rec core.Record) recordResult {
	ctx, cancel := context.WithTimeout(ctx, c.svc.cfg.recordTimeout)
	defer cancel()

	res := recordResult{scored: ScoredRecord{Record: rec}}
	if c.svc.dedup.SeenAny(ctx, core.IdentityKeys(&rec)) {
		res.outcome = outcomeDuplicate
		return res
	}

	score := c.svc.scorer.Score(ctx, &rec)
	res.scored.Score = score
	if score.Degraded {
		res.warnings++
		res.errs = append(res.errs, score.Err)
	} else if score.Score < c.threshold {
		res.outcome = outcomeFailed
		res.errs = append(res.errs, errors.Mark(
			errors.Wrapf(ErrBelowThreshold, "record %s scored %.2f, threshold %.2f", rec.Fingerprint, score.Score, c.threshold),
			core.ErrValidation))
		return res
	}

	cls := c.svc.classifier.Classify(ctx, &rec)
	if cls.Degraded {
		res.warnings++
		res.errs = append(res.errs, cls.Err)
	}
	for _, subject := range cls.Subjects {
		if _, err := c.svc.arena.EnsurePartition(ctx, subject); err != nil {
			res.outcome = outcomeFailed
			res.errs = append(res.errs, errors.Wrapf(err, "ensuring partition %q", subject))
			return res
		}
	}
	res.scored.Subjects = cls.Subjects
	res.outcome = outcomeAccepted
	return res
}

// tally splits results into accepted records, the counter delta of the
// batch, the subjects of accepted records and the errors worth reporting.
func tally(results []recordResult) ([]ScoredRecord, core.Counters, []string, []error) {
	var (
		accepted []ScoredRecord
		delta    core.Counters
		subjects []string
		errs     []error
	)
	delta.Fetched = int64(len(results))
	seen := make(map[string]struct{})
	for _, r := range results {
		delta.Warnings += r.warnings
		errs = append(errs, r.errs...)
		switch r.outcome {
		case outcomeAccepted:
			accepted = append(accepted, r.scored)
			for _, s := range r.scored.Subjects {
				if _, ok := seen[s]; !ok {
					seen[s] = struct{}{}
					subjects = append(subjects, s)
				}
			}
		case outcomeDuplicate:
			delta.Duplicates++
		default:
			delta.Failed++
		}
	}
	return accepted, delta, subjects, errs
}

// progress publishes a committed checkpoint on the job.
func (c *controller) progress(cp *core.Checkpoint, subjects []string, errs []error) {
	now := time.Now().UTC()
	_, err := c.svc.registry.update(context.Background(), c.entry, func(j *core.Job) error {
		j.Cursor = cp.Cursor
		j.Sequence = cp.Sequence
		j.Counters = cp.Counters
		j.AddSubjectAreas(subjects...)
		for _, e := range errs {
			j.RecordError(core.NewJobError(e, now))
		}
		return nil
	})
	if err != nil {
		c.logger.Error("failed to record job progress", "sequence", cp.Sequence, "err", err)
	}
}

// complete marks a running job completed. A job paused while its last
// batch was in flight stays paused; its exhausted checkpoint completes it
// on resume.
func (c *controller) complete() {
	job, err := c.svc.registry.update(context.Background(), c.entry, func(j *core.Job) error {
		if j.State != core.JobStateRunning {
			return errJobTerminal
		}
		j.State = core.JobStateCompleted
		j.EndedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		if !errors.Is(err, errJobTerminal) {
			c.logger.Error("failed to complete job", "err", err)
		}
		return
	}
	summary := Summarize(job, time.Now())
	c.logger.Info("job completed",
		"written", job.Counters.Written,
		"duplicates", job.Counters.Duplicates,
		"failed", job.Counters.Failed,
		"warnings", job.Counters.Warnings,
		"success_rate", summary.SuccessRate,
		"records_per_minute", summary.RecordsPerMinute)
}

// fail records err on the job and moves a running job to failed.
// The last committed checkpoint is kept for resubmission.
func (c *controller) fail(err error) {
	jerr := core.NewJobError(err, time.Now().UTC())
	c.logger.Error("job failed", "kind", jerr.Kind, "hint", jerr.Hint, "err", err)

	_, uerr := c.svc.registry.update(context.Background(), c.entry, func(j *core.Job) error {
		if j.State.IsTerminal() {
			return errJobTerminal
		}
		j.RecordError(jerr)
		if j.State == core.JobStateRunning {
			j.State = core.JobStateFailed
			j.EndedAt = jerr.At
		}
		return nil
	})
	if uerr != nil && !errors.Is(uerr, errJobTerminal) {
		c.logger.Error("failed to record job failure", "err", uerr)
	}
}
