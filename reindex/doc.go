// Package reindex replays stored records to the vector index.
//
// The ingestion pipeline signals the index once per committed batch and
// drops signals when the downstream falls behind. A reindex walks every
// stored record in ID order and publishes fresh signals, retrying each
// publish, so the index can be rebuilt from the record store alone.
//
// Usage:
//
//	r := reindex.NewReindexer(store.Records, notifier, reindex.DefaultConfig(), os.Stderr)
//	stats, err := r.Run(ctx)
package reindex
