// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/index"
	"github.com/poiesic/medingest/retry"
	"github.com/poiesic/medingest/storage"
)

// ErrInvalidBatchSize is returned when Config.BatchSize is < 1.
var ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

// JobID is the job ID carried by replayed signals.
const JobID = "reindex"

// Config holds configuration for a reindex run.
type Config struct {
	// BatchSize is the number of records per signal.
	BatchSize int

	// ReportInterval is how often to report progress, in records.
	ReportInterval int

	// Partition limits the run to records in one subject area.
	// Empty replays every record.
	Partition string

	// Policy retries each publish.
	Policy retry.Policy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 500,
		Policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			Jitter:      0.5,
		},
	}
}

// Stats summarizes a run.
type Stats struct {
	Records int
	Signals int
	Elapsed time.Duration
}

// Reindexer replays stored records as index signals.
type Reindexer struct {
	records   storage.RecordRepository
	publisher index.Publisher
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
}

// NewReindexer creates a reindexer. progress receives a human readable
// progress line, typically os.Stderr; nil discards it.
func NewReindexer(records storage.RecordRepository, publisher index.Publisher, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reindexer{
		records:   records,
		publisher: publisher,
		config:    config,
		progress:  progress,
		logger:    slog.Default().With("component", "reindex"),
	}
}

// Run publishes one signal per batch of stored records, in ID order.
// A publish that still fails after its retries stops the run; the
// returned stats count what was published before it.
func (r *Reindexer) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.config.BatchSize < 1 {
		return stats, ErrInvalidBatchSize
	}
	if r.config.Policy.MaxAttempts < 1 {
		return stats, retry.ErrInvalidMaxAttempts
	}

	partition := ""
	if r.config.Partition != "" {
		partition = core.NormalizePartitionName(r.config.Partition)
	}

	total, err := r.total(ctx, partition)
	if err != nil {
		return stats, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records to reindex\n")
		return stats, nil
	}
	fmt.Fprintf(r.progress, "Reindexing %d records (batch size: %d)\n", total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	var pending []*core.StoredRecord
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		signal := r.signalFor(uint64(stats.Signals+1), pending)
		if err := r.publish(ctx, signal); err != nil {
			return err
		}
		stats.Signals++
		stats.Records += len(pending)
		tracker.Increment(len(pending))
		pending = pending[:0]
		return nil
	}

	err = r.records.ForEachRecord(ctx, r.config.BatchSize, func(batch []*core.StoredRecord) error {
		for _, rec := range batch {
			if partition != "" && !slices.Contains(rec.Subjects, partition) {
				continue
			}
			pending = append(pending, rec)
			if len(pending) == r.config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		err = flush()
	}

	tracker.Finish()
	stats.Elapsed = tracker.Elapsed()
	if err != nil {
		return stats, err
	}

	r.logger.Info("reindex complete", "records", stats.Records, "signals", stats.Signals, "elapsed", stats.Elapsed)
	fmt.Fprintf(r.progress, "Reindex complete. Published %d records in %d signals in %v\n",
		stats.Records, stats.Signals, stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}

func (r *Reindexer) total(ctx context.Context, partition string) (int, error) {
	if partition == "" {
		return r.records.CountRecords(ctx)
	}
	ids, err := r.records.ListPartitionRecords(ctx, partition)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (r *Reindexer) signalFor(seq uint64, records []*core.StoredRecord) index.Signal {
	ids := make([]core.ID, 0, len(records))
	var partitions []string
	for _, rec := range records {
		ids = append(ids, rec.Id)
		for _, s := range rec.Subjects {
			if !slices.Contains(partitions, s) {
				partitions = append(partitions, s)
			}
		}
	}
	slices.Sort(partitions)
	return index.Signal{
		JobID:      JobID,
		Sequence:   seq,
		RecordIDs:  ids,
		Partitions: partitions,
		At:         time.Now().UTC(),
	}
}

func (r *Reindexer) publish(ctx context.Context, signal index.Signal) error {
	policy := r.config.Policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.logger.Warn("publish failed, retrying", "sequence", signal.Sequence, "attempt", attempt, "delay", delay, "err", err)
	}
	if err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return r.publisher.Publish(ctx, signal)
	}); err != nil {
		return fmt.Errorf("failed to publish signal %d: %w", signal.Sequence, err)
	}
	return nil
}
