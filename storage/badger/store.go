package badger

import (
	"errors"

	"github.com/poiesic/medingest/storage"
)

// Store bundles the repositories that share one Backend.
type Store struct {
	Backend      *Backend
	Records      *RecordRepository
	Partitions   *PartitionRepository
	Checkpoints  *CheckpointRepository
	Jobs         *JobRepository
	Fingerprints *FingerprintIndex
}

// OpenStore opens a Backend and builds every repository on top of it.
func OpenStore(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// NewStore builds a Store over an already open Backend.
func NewStore(backend *Backend) *Store {
	return &Store{
		Backend:      backend,
		Records:      NewRecordRepository(backend),
		Partitions:   NewPartitionRepository(backend),
		Checkpoints:  NewCheckpointRepository(backend),
		Jobs:         NewJobRepository(backend),
		Fingerprints: NewFingerprintIndex(backend),
	}
}

// Close closes the repositories and then the backend.
func (s *Store) Close() error {
	if s.Backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return errors.Join(
		s.Records.Close(),
		s.Partitions.Close(),
		s.Backend.Close(),
	)
}
