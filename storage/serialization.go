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


package storage

import (
	"fmt"

	"github.com/poiesic/medingest/core"
)

// MarshalRecord serializes a StoredRecord to bytes.
func MarshalRecord(record *core.StoredRecord) []byte {
	buf := make([]byte, core.StoredRecordMUS.Size(*record))
	core.StoredRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalRecord deserializes a StoredRecord from bytes.
func UnmarshalRecord(data []byte) (*core.StoredRecord, error) {
	record, _, err := core.StoredRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalPartition serializes a Partition to bytes.
func MarshalPartition(partition *core.Partition) []byte {
	buf := make([]byte, core.PartitionMUS.Size(*partition))
	core.PartitionMUS.Marshal(*partition, buf)
	return buf
}

// UnmarshalPartition deserializes a Partition from bytes.
func UnmarshalPartition(data []byte) (*core.Partition, error) {
	partition, _, err := core.PartitionMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &partition, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
// The cursor is stored as raw bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, core.CheckpointMUS.Size(*checkpoint))
	core.CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := core.CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if checkpoint.JobID == "" {
		return nil, fmt.Errorf("%w: checkpoint without job id", ErrSerializationFailed)
	}
	return &checkpoint, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) []byte {
	buf := make([]byte, core.JobMUS.Size(*job))
	core.JobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	job, _, err := core.JobMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if !job.State.IsValid() {
		return nil, fmt.Errorf("%w: unknown job state %q", ErrSerializationFailed, job.State)
	}
	return &job, nil
}
