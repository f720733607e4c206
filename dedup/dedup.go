// Package dedup decides whether a fetched record is already stored.
//
// The Deduplicator consults a shared storage.FingerprintIndex. It is an early
// filter only: the record store rejects duplicates again at commit time, so a
// failed lookup is treated as "not a duplicate" instead of failing the record.
package dedup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// ErrEmptyFingerprint is returned when recording an empty fingerprint.
var ErrEmptyFingerprint = errors.New("empty fingerprint")

// Deduplicator checks and records fingerprints against a shared index.
type Deduplicator struct {
	index  storage.FingerprintIndex
	logger *slog.Logger
}

// New creates a Deduplicator over index.
func New(index storage.FingerprintIndex) *Deduplicator {
	return &Deduplicator{
		index:  index,
		logger: slog.Default().With("component", "dedup"),
	}
}

// IsDuplicate reports whether fp is already in the index.
func (d *Deduplicator) IsDuplicate(ctx context.Context, fp core.Fingerprint) (bool, error) {
	if fp == "" {
		return false, nil
	}
	return d.index.Contains(ctx, fp)
}

// Seen is IsDuplicate with lookup errors logged and treated as not duplicate.
func (d *Deduplicator) Seen(ctx context.Context, fp core.Fingerprint) bool {
	dup, err := d.IsDuplicate(ctx, fp)
	if err != nil {
		d.logger.Warn("fingerprint lookup failed, deferring to commit", "fingerprint", fp, "err", err)
		return false
	}
	return dup
}

// SeenAny reports whether any of the keys is in the index. Lookup errors are
// logged and the key treated as unseen.
func (d *Deduplicator) SeenAny(ctx context.Context, keys []core.Fingerprint) bool {
	for _, fp := range keys {
		if d.Seen(ctx, fp) {
			return true
		}
	}
	return false
}

// Record adds fp to the index. Recording a known fingerprint is a no-op.
func (d *Deduplicator) Record(ctx context.Context, fp core.Fingerprint) error {
	if fp == "" {
		return ErrEmptyFingerprint
	}
	_, err := d.index.Add(ctx, fp)
	return err
}

// RecordAll adds every fingerprint, returning the joined errors.
func (d *Deduplicator) RecordAll(ctx context.Context, fps []core.Fingerprint) error {
	var errs []error
	for _, fp := range fps {
		if err := d.Record(ctx, fp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BatchSet tracks fingerprints claimed within one batch.
// It is safe for use by the workers processing the batch.
type BatchSet struct {
	mu   sync.Mutex
	seen map[core.Fingerprint]struct{}
}

// NewBatchSet creates an empty set.
func NewBatchSet(capacity int) *BatchSet {
	return &BatchSet{seen: make(map[core.Fingerprint]struct{}, capacity)}
}

// ClaimAll claims every key of one record. It returns false, claiming
// nothing, when any key was already claimed.
func (s *BatchSet) ClaimAll(keys []core.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fp := range keys {
		if _, ok := s.seen[fp]; ok {
			return false
		}
	}
	for _, fp := range keys {
		s.seen[fp] = struct{}{}
	}
	return true
}
