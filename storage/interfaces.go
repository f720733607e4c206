package storage

import (
	"context"

	"github.com/poiesic/medingest/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	// The shared backend is closed separately.
	Close() error
}

// BatchCommit is the unit of work handed to RecordRepository.CommitBatch.
type BatchCommit struct {
	JobID      string
	Records    []*core.StoredRecord
	Checkpoint *core.Checkpoint
}

// RecordRepository provides operations for accepted records.
type RecordRepository interface {
	Repository

	// CommitBatch stores every record of the batch together with the batch's
	// checkpoint in a single transaction. Either all of them become visible or
	// none do. Records whose ID or any identity key (core.IdentityKeys)
	// already exists are skipped and reported as duplicates in the result.
	// Every identity key of a written record is added to the local
	// fingerprint index in the same transaction.
	// Returns ErrCheckpointRegression if the checkpoint is older than the stored one.
	CommitBatch(ctx context.Context, batch *BatchCommit) (*core.CommitResult, error)

	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.ID) (*core.StoredRecord, error)

	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// ListPartitionRecords returns the IDs of records in a partition.
	ListPartitionRecords(ctx context.Context, partition string) ([]core.ID, error)

	// ForEachRecord calls fn with successive batches of up to batchSize records,
	// ordered by ID. Iteration stops on the first error from fn.
	ForEachRecord(ctx context.Context, batchSize int, fn func([]*core.StoredRecord) error) error
}

// PartitionRepository provides operations for subject-area partitions.
type PartitionRepository interface {
	Repository

	// CreatePartitionIfAbsent atomically creates the named partition unless it
	// exists. Returns the stored partition and whether this call created it.
	// Thread-safe: at most one caller observes created == true per name.
	CreatePartitionIfAbsent(ctx context.Context, name string) (*core.Partition, bool, error)

	// GetPartition retrieves a partition by name.
	// Returns ErrNotFound if the partition doesn't exist.
	GetPartition(ctx context.Context, name string) (*core.Partition, error)

	// ListPartitions returns all partitions ordered by name.
	ListPartitions(ctx context.Context) ([]*core.Partition, error)
}

// CheckpointRepository persists job checkpoints.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint.
	// Returns ErrCheckpointRegression if a newer checkpoint is stored.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint of a job.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, jobID string) (*core.Checkpoint, error)
}

// JobRepository persists job records.
type JobRepository interface {
	// SaveJob inserts or replaces a job.
	SaveJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// ListJobs returns all jobs ordered by creation time, newest first.
	ListJobs(ctx context.Context) ([]*core.Job, error)
}

// FingerprintIndex is the shared set of fingerprints of stored records.
type FingerprintIndex interface {
	// Contains reports whether the fingerprint is present.
	Contains(ctx context.Context, fp core.Fingerprint) (bool, error)

	// Add inserts the fingerprint. Returns true if it was not present before.
	// Idempotent.
	Add(ctx context.Context, fp core.Fingerprint) (bool, error)
}
