package badger

import (
	"encoding/binary"

	"github.com/poiesic/medingest/core"
)

// Key prefixes for different data types
const (
	recordPrefix      = "record:"
	memberPrefix      = "member:"
	fingerprintPrefix = "fprint:"
	partitionPrefix   = "partition:"
	checkpointPrefix  = "chkpt:"
	jobPrefix         = "job:"
)

// makeRecordKey generates a key for a stored record by ID.
// Format: prefix + 8-byte big-endian ID, so iteration follows ID order.
func makeRecordKey(id core.ID) []byte {
	buf := make([]byte, len(recordPrefix)+8)
	offset := copy(buf, recordPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// recordIDFromKey extracts the ID from a record or membership key.
func recordIDFromKey(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeMemberKey generates a composite key for the partition membership index.
// Format: prefix:partition:recordID
func makeMemberKey(partition string, id core.ID) []byte {
	prefix := makePartialMemberKey(partition)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialMemberKey generates the scan prefix of one partition.
// Format: prefix:partition:
func makePartialMemberKey(partition string) []byte {
	return []byte(memberPrefix + partition + ":")
}

// makeFingerprintKey generates a key for the fingerprint index.
func makeFingerprintKey(fp core.Fingerprint) []byte {
	return []byte(fingerprintPrefix + string(fp))
}

// makePartitionKey generates a key for a partition by normalized name.
func makePartitionKey(name string) []byte {
	return []byte(partitionPrefix + name)
}

// makeCheckpointKey generates a key for job checkpoints.
func makeCheckpointKey(jobID string) []byte {
	return []byte(checkpointPrefix + jobID)
}

// makeJobKey generates a key for a job record.
func makeJobKey(jobID string) []byte {
	return []byte(jobPrefix + jobID)
}

// encodeID serializes an ID as 8 big-endian bytes.
func encodeID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
