// Package ingestion runs resumable bulk ingestion jobs.
//
// A Service owns a registry of jobs. Each running job has one controller
// goroutine that repeats the same cycle until the source is exhausted or the
// job is paused, cancelled or fails:
//   - fetch one batch from the source adapter, retrying transient failures
//   - fingerprint, deduplicate, validate, score and classify every record
//     on the job's worker pool
//   - commit accepted records and the next checkpoint in one transaction
//   - record fingerprints and signal the vector index
//
// A checkpoint only advances after its batch commits, so a job resumed after
// a pause, a crash or a resubmission restarts from the last committed cursor.
// Records of an uncommitted batch may be fetched again; the deduplicator and
// the store discard the ones already written.
//
// State changes follow core.CanTransition:
//
//	pending -> running -> paused | completed | cancelled | failed
//	paused  -> running | cancelled
//
// Pause is reported immediately and takes effect at the next batch boundary.
// Cancel also aborts in-flight work. Status reads never wait on either.
package ingestion
