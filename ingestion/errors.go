package ingestion

import "errors"

var (
	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidState is returned when a control operation is not allowed
	// in the job's current state.
	ErrInvalidState = errors.New("invalid job state")

	// ErrShutdown is returned by operations that would start work after Shutdown.
	ErrShutdown = errors.New("ingestion service is shut down")

	// ErrStoreRequired is returned when a required repository is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrSourcesRequired is returned when no source registry is provided.
	ErrSourcesRequired = errors.New("source registry required")

	// ErrBelowThreshold marks records rejected for a low quality score.
	ErrBelowThreshold = errors.New("quality score below threshold")

	// ErrBatchDeadline marks records unfinished when the batch timeout expired.
	ErrBatchDeadline = errors.New("record unfinished at batch deadline")
)
