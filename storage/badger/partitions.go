package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// PartitionRepository implements storage.PartitionRepository for BadgerDB.
type PartitionRepository struct {
	backend *Backend
}

var _ storage.PartitionRepository = (*PartitionRepository)(nil)

// NewPartitionRepository creates a new PartitionRepository.
func NewPartitionRepository(backend *Backend) *PartitionRepository {
	return &PartitionRepository{
		backend: backend,
	}
}

// Close releases resources. PartitionRepository has no resources to release.
func (r *PartitionRepository) Close() error {
	return nil
}

// CreatePartitionIfAbsent creates the named partition unless it exists.
//
// The existence check and the write share one transaction. When two callers
// race, badger aborts the later commit with ErrConflict; that caller retries
// and finds the winner's partition.
func (r *PartitionRepository) CreatePartitionIfAbsent(ctx context.Context, name string) (*core.Partition, bool, error) {
	name = core.NormalizePartitionName(name)
	if name == "" {
		return nil, false, storage.ErrInvalidPartitionName
	}
	key := makePartitionKey(name)

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		var partition *core.Partition
		created := false
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			existing, err := readPartition(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				partition = existing
				return nil
			}

			partition = &core.Partition{
				Id:        core.IDFromContent(partitionPrefix + name),
				Name:      name,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.Set(key, storage.MarshalPartition(partition)); err != nil {
				return err
			}
			created = true
			return tx.Commit()
		}, true)

		if errors.Is(err, badger.ErrConflict) {
			// Someone else created it first, look again
			lastErr = err
			continue
		}
		if err != nil {
			return nil, false, translateTxError(err)
		}
		return partition, created, nil
	}

	return nil, false, translateTxError(lastErr)
}

// GetPartition retrieves a partition by name.
func (r *PartitionRepository) GetPartition(ctx context.Context, name string) (*core.Partition, error) {
	var result *core.Partition
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPartition(tx, makePartitionKey(core.NormalizePartitionName(name)))
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

// ListPartitions returns all partitions ordered by name.
func (r *PartitionRepository) ListPartitions(ctx context.Context) ([]*core.Partition, error) {
	var results []*core.Partition
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(partitionPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var partition *core.Partition
			err := iter.Item().Value(func(val []byte) error {
				var err error
				partition, err = storage.UnmarshalPartition(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, partition)
		}
		return nil
	}, false)

	return results, err
}

// readPartition reads a partition from the transaction.
func readPartition(tx *badger.Txn, key []byte) (*core.Partition, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var partition *core.Partition
	err = item.Value(func(val []byte) error {
		var err error
		partition, err = storage.UnmarshalPartition(val)
		return err
	})
	return partition, err
}
