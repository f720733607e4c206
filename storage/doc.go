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


// Package storage provides the storage abstraction layer for medingest.
//
// This package defines repository interfaces that decouple the ingestion
// pipeline from the storage engine. The badger sub-package implements all of
// them on a single embedded BadgerDB; the redis sub-package implements the
// shared FingerprintIndex for deployments where several processes ingest into
// the same store.
//
// # Architecture
//
//   - RecordRepository: accepted records, committed one batch at a time
//   - PartitionRepository: subject-area partitions with create-if-absent
//   - CheckpointRepository: resumable job positions
//   - JobRepository: job records and their state
//   - FingerprintIndex: the shared duplicate-detection set
//
// # Atomic batches
//
// RecordRepository.CommitBatch writes the records, their partition index
// entries, their fingerprints and the job checkpoint in one transaction, so a
// checkpoint never points past uncommitted records.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	records := badger.NewRecordRepository(backend)
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Serialization
//
// Values are encoded with the mus serializers in core. Decode failures wrap
// ErrSerializationFailed.
package storage
