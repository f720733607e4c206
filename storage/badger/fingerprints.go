package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// FingerprintIndex implements storage.FingerprintIndex on the local store.
// CommitBatch maintains the same keys, so records written by any job on
// this store are visible here.
type FingerprintIndex struct {
	backend *Backend
}

var _ storage.FingerprintIndex = (*FingerprintIndex)(nil)

// NewFingerprintIndex creates a new FingerprintIndex.
func NewFingerprintIndex(backend *Backend) *FingerprintIndex {
	return &FingerprintIndex{backend: backend}
}

// Contains reports whether the fingerprint is present.
func (f *FingerprintIndex) Contains(ctx context.Context, fp core.Fingerprint) (bool, error) {
	found := false
	err := f.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeFingerprintKey(fp))
		if err == nil {
			found = true
			return nil
		}
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}, false)
	return found, err
}

// Add inserts the fingerprint. Returns true if it was not present before.
func (f *FingerprintIndex) Add(ctx context.Context, fp core.Fingerprint) (bool, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		added := false
		err := f.backend.WithTx(func(tx *badger.Txn) error {
			key := makeFingerprintKey(fp)
			_, err := tx.Get(key)
			if err == nil {
				return nil
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
			if err := tx.Set(key, encodeID(core.RecordIDFor(fp))); err != nil {
				return err
			}
			added = true
			return tx.Commit()
		}, true)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return added, translateTxError(err)
	}
	// Every attempt conflicted with a concurrent writer of the same key
	return false, nil
}
