package badger

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{
		backend: backend,
	}
}

// Close releases resources. RecordRepository has no resources to release.
func (r *RecordRepository) Close() error {
	return nil
}

// CommitBatch stores a batch of records and its checkpoint atomically.
//
// The checkpoint's Written and Duplicates counters are incremented by the
// commit outcome; the caller supplies every other counter. The input
// checkpoint is not modified, the stored copy is returned in the result.
func (r *RecordRepository) CommitBatch(ctx context.Context, batch *storage.BatchCommit) (*core.CommitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *core.CommitResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		result = &core.CommitResult{}
		now := time.Now().UTC()

		var checkpoint *core.Checkpoint
		if batch.Checkpoint != nil {
			cp := *batch.Checkpoint
			checkpoint = &cp
			if err := checkRegression(tx, checkpoint); err != nil {
				return err
			}
		}

		for _, input := range batch.Records {
			key := makeRecordKey(input.Id)
			fps := identityKeys(&input.Record)

			// An existing record or identity key means another batch or job
			// stored this work first
			dup, err := exists(tx, key, fps)
			if err != nil {
				return err
			}
			if dup {
				result.Duplicates++
				continue
			}

			record := *input
			record.JobID = batch.JobID
			record.InsertedAt = now
			if err := tx.Set(key, storage.MarshalRecord(&record)); err != nil {
				return err
			}

			// Update partition membership index
			for _, partition := range record.Subjects {
				if err := tx.Set(makeMemberKey(partition, record.Id), nil); err != nil {
					return err
				}
			}

			// Update fingerprint index
			for _, fp := range fps {
				if err := tx.Set(makeFingerprintKey(fp), encodeID(record.Id)); err != nil {
					return err
				}
			}

			result.Written++
			result.RecordIDs = append(result.RecordIDs, record.Id)
		}

		if checkpoint != nil {
			checkpoint.Counters.Written += int64(result.Written)
			checkpoint.Counters.Duplicates += int64(result.Duplicates)
			checkpoint.UpdatedAt = now
			if err := putCheckpoint(tx, checkpoint); err != nil {
				return err
			}
			result.Checkpoint = checkpoint
		}

		return tx.Commit()
	}, true)

	if err != nil {
		return nil, translateTxError(err)
	}
	return result, nil
}

// identityKeys returns the derived identity keys of r plus its stored
// fingerprint when that is not among them.
func identityKeys(r *core.Record) []core.Fingerprint {
	keys := core.IdentityKeys(r)
	if r.Fingerprint != "" && !slices.Contains(keys, r.Fingerprint) {
		keys = append(keys, r.Fingerprint)
	}
	return keys
}

// exists reports whether the record key or any fingerprint key is set.
// Reads inside tx see the batch's own pending writes.
func exists(tx *badger.Txn, recordKey []byte, fps []core.Fingerprint) (bool, error) {
	keys := [][]byte{recordKey}
	for _, fp := range fps {
		keys = append(keys, makeFingerprintKey(fp))
	}
	for _, k := range keys {
		_, err := tx.Get(k)
		if err == nil {
			return true, nil
		}
		if err != badger.ErrKeyNotFound {
			return false, err
		}
	}
	return false, nil
}

// GetRecord retrieves a single record by ID.
func (r *RecordRepository) GetRecord(ctx context.Context, id core.ID) (*core.StoredRecord, error) {
	var result *core.StoredRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeRecordKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// CountRecords returns the number of stored records.
func (r *RecordRepository) CountRecords(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(recordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ListPartitionRecords returns the IDs of records in a partition.
func (r *RecordRepository) ListPartitionRecords(ctx context.Context, partition string) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makePartialMemberKey(core.NormalizePartitionName(partition))
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			ids = append(ids, recordIDFromKey(iter.Item().Key()))
		}
		return nil
	}, false)
	return ids, err
}

// ForEachRecord pages through all records in ID order.
// Each page is read in its own transaction; fn runs outside of it.
func (r *RecordRepository) ForEachRecord(ctx context.Context, batchSize int, fn func([]*core.StoredRecord) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}

	prefix := []byte(recordPrefix)
	var lastKey []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var page []*core.StoredRecord
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			defer iter.Close()

			seek := prefix
			if lastKey != nil {
				seek = lastKey
			}
			for iter.Seek(seek); iter.Valid() && len(page) < batchSize; iter.Next() {
				item := iter.Item()
				if lastKey != nil && bytes.Equal(item.Key(), lastKey) {
					continue
				}

				var record *core.StoredRecord
				err := item.Value(func(val []byte) error {
					var err error
					record, err = storage.UnmarshalRecord(val)
					return err
				})
				if err != nil {
					return err
				}
				page = append(page, record)
				lastKey = item.KeyCopy(nil)
			}
			return nil
		}, false)
		if err != nil {
			return err
		}

		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < batchSize {
			return nil
		}
	}
}

// Helper methods

// readRecord reads a record from the transaction.
func readRecord(tx *badger.Txn, key []byte) (*core.StoredRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.StoredRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	return record, err
}
