package ingestion

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/dedup"
	"github.com/poiesic/medingest/index"
	"github.com/poiesic/medingest/quality"
	"github.com/poiesic/medingest/retry"
	"github.com/poiesic/medingest/storage"
)

// ScoredRecord is an accepted record with its score and subjects.
type ScoredRecord struct {
	Record   core.Record
	Score    quality.Result
	Subjects []string
}

// BatchWriter commits batches of accepted records.
type BatchWriter struct {
	records  storage.RecordRepository
	dedup    *dedup.Deduplicator
	notifier index.Notifier
	policy   retry.Policy
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBatchWriter creates a writer. Transient write failures are retried
// under policy; each attempt is bounded by timeout.
func NewBatchWriter(records storage.RecordRepository, d *dedup.Deduplicator, notifier index.Notifier, policy retry.Policy, timeout time.Duration, logger *slog.Logger) *BatchWriter {
	if notifier == nil {
		notifier = index.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	policy.Retryable = core.IsRetryable
	return &BatchWriter{
		records:  records,
		dedup:    d,
		notifier: notifier,
		policy:   policy,
		timeout:  timeout,
		logger:   logger.With("component", "writer"),
	}
}

// CommitBatch stores records and the next checkpoint atomically.
//
// The commit is retried as a whole on transient write failures, so the
// checkpoint and its counters are applied exactly once. Exhausted retries
// and non-transient failures are fatal for the job. After the commit, the
// written fingerprints are recorded in the shared index and one signal is
// sent to the vector index; failures of either are logged only.
func (w *BatchWriter) CommitBatch(ctx context.Context, jobID string, records []ScoredRecord, next *core.Checkpoint) (*core.CommitResult, error) {
	stored := make([]*core.StoredRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		stored = append(stored, &core.StoredRecord{
			Id:            core.RecordIDFor(r.Record.Fingerprint),
			Record:        r.Record,
			Score:         r.Score.Score,
			ScoreDegraded: r.Score.Degraded,
			Subjects:      slices.Clone(r.Subjects),
		})
	}
	batch := &storage.BatchCommit{JobID: jobID, Records: stored, Checkpoint: next}

	var result *core.CommitResult
	attempts := 0
	err := retry.Do(ctx, w.policy, func(ctx context.Context) error {
		attempts++
		cctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		var err error
		result, err = w.records.CommitBatch(cctx, batch)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = core.MarkTransientWrite(err)
		}
		if err != nil {
			w.logger.Warn("batch commit failed", "job", jobID, "sequence", next.Sequence, "attempt", attempts, "err", err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		switch {
		case errors.Is(err, retry.ErrExhausted):
			err = core.MarkFatal(errors.Wrap(err, "storage unavailable"), "check the store for contention or disk problems, then resubmit the job")
		case errors.Is(err, storage.ErrCheckpointRegression):
			err = core.MarkFatal(err, "another controller is writing this job's checkpoints")
		case !core.IsRetryable(err):
			err = core.MarkFatal(err, "")
		}
		return nil, err
	}

	w.afterCommit(ctx, jobID, stored, result)
	return result, nil
}

func (w *BatchWriter) afterCommit(ctx context.Context, jobID string, stored []*core.StoredRecord, result *core.CommitResult) {
	if len(result.RecordIDs) == 0 {
		return
	}

	written := make(map[core.ID]struct{}, len(result.RecordIDs))
	for _, id := range result.RecordIDs {
		written[id] = struct{}{}
	}
	var fps []core.Fingerprint
	var partitions []string
	for _, r := range stored {
		if _, ok := written[r.Id]; !ok {
			continue
		}
		fps = append(fps, core.IdentityKeys(&r.Record)...)
		for _, s := range r.Subjects {
			if !slices.Contains(partitions, s) {
				partitions = append(partitions, s)
			}
		}
	}

	if w.dedup != nil {
		if err := w.dedup.RecordAll(context.WithoutCancel(ctx), fps); err != nil {
			w.logger.Warn("failed to record fingerprints", "job", jobID, "err", err)
		}
	}

	slices.Sort(partitions)
	w.notifier.Notify(ctx, index.Signal{
		JobID:      jobID,
		Sequence:   result.Checkpoint.Sequence,
		RecordIDs:  slices.Clone(result.RecordIDs),
		Partitions: partitions,
		At:         time.Now().UTC(),
	})
}
