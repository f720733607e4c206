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


package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
	}
}

// SaveCheckpoint persists a checkpoint for a job.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := checkRegression(tx, checkpoint); err != nil {
			return err
		}
		checkpoint.UpdatedAt = time.Now().UTC()
		if err := putCheckpoint(tx, checkpoint); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return translateTxError(err)
}

// LoadCheckpoint retrieves the checkpoint for a job.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, jobID string) (*core.Checkpoint, error) {
	var checkpoint *core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		checkpoint, err = readCheckpoint(tx, jobID)
		return err
	}, false)

	return checkpoint, err
}

// checkRegression rejects a checkpoint that does not move past the stored one.
func checkRegression(tx *badger.Txn, checkpoint *core.Checkpoint) error {
	existing, err := readCheckpoint(tx, checkpoint.JobID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Sequence >= checkpoint.Sequence {
		return fmt.Errorf("%w: job %s stored %d, got %d",
			storage.ErrCheckpointRegression, checkpoint.JobID, existing.Sequence, checkpoint.Sequence)
	}
	return nil
}

// putCheckpoint writes a checkpoint inside tx.
func putCheckpoint(tx *badger.Txn, checkpoint *core.Checkpoint) error {
	return tx.Set(makeCheckpointKey(checkpoint.JobID), storage.MarshalCheckpoint(checkpoint))
}

// readCheckpoint reads a checkpoint from the transaction.
func readCheckpoint(tx *badger.Txn, jobID string) (*core.Checkpoint, error) {
	item, err := tx.Get(makeCheckpointKey(jobID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var checkpoint *core.Checkpoint
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
		return unmarshalErr
	})
	return checkpoint, err
}
