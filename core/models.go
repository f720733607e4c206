package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Cursor is an opaque source position. Only the adapter that produced it
// knows how to interpret it.
type Cursor []byte

// Record is a raw document fetched from a literature source.
// Fingerprint is derived after fetch, never supplied by the source.
type Record struct {
	ExternalID      string            `json:"external_id"`
	Source          string            `json:"source"`
	Title           string            `json:"title"`
	Abstract        string            `json:"abstract,omitempty"`
	Journal         string            `json:"journal,omitempty"`
	DOI             string            `json:"doi,omitempty"`
	PublishedAt     time.Time         `json:"published_at,omitzero"`
	Authors         []string          `json:"authors,omitempty"`
	MeSHTerms       []string          `json:"mesh_terms,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
	PublicationType string            `json:"publication_type,omitempty"`
	SubjectHint     string            `json:"subject_hint,omitempty"` // Subject area whose query produced the record
	Metadata        map[string]string `json:"metadata,omitempty"`
	Fingerprint     Fingerprint       `json:"fingerprint,omitempty"`
}

// StoredRecord is a record accepted into durable storage.
type StoredRecord struct {
	Id            ID        `json:"id"`
	Record        Record    `json:"record"`
	Score         float64   `json:"score"`
	ScoreDegraded bool      `json:"score_degraded,omitempty"` // Score is the default because scoring failed
	Subjects      []string  `json:"subjects"`
	JobID         string    `json:"job_id"`
	InsertedAt    time.Time `json:"inserted_at"`
}

// RecordIDFor returns the storage ID of a record with the given fingerprint.
func RecordIDFor(fp Fingerprint) ID {
	return IDFromContent(string(fp))
}

// UnclassifiedPartition receives records that match no subject area.
const UnclassifiedPartition = "unclassified"

// Partition is a named subject area holding accepted records.
type Partition struct {
	Id        ID        `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Counters tracks per-job record outcomes.
type Counters struct {
	Fetched    int64 `json:"fetched"`
	Duplicates int64 `json:"duplicates"`
	Written    int64 `json:"written"`
	Failed     int64 `json:"failed"`
	Warnings   int64 `json:"warnings"` // Degraded scoring or classification
}

// Add returns the element-wise sum of c and other.
func (c Counters) Add(other Counters) Counters {
	return Counters{
		Fetched:    c.Fetched + other.Fetched,
		Duplicates: c.Duplicates + other.Duplicates,
		Written:    c.Written + other.Written,
		Failed:     c.Failed + other.Failed,
		Warnings:   c.Warnings + other.Warnings,
	}
}

// Processed is the number of fetched records with a final outcome.
func (c Counters) Processed() int64 {
	return c.Written + c.Failed + c.Duplicates
}

// Checkpoint is the minimal state needed to resume a job.
// Sequence counts committed batches and orders checkpoints of one job.
type Checkpoint struct {
	JobID     string    `json:"job_id"`
	Cursor    Cursor    `json:"cursor"`
	Counters  Counters  `json:"counters"`
	Sequence  uint64    `json:"sequence"`
	Exhausted bool      `json:"exhausted,omitempty"` // The committed batch was the source's last
	UpdatedAt time.Time `json:"updated_at"`
}

// CommitResult is returned by a successful batch commit.
type CommitResult struct {
	Checkpoint *Checkpoint
	Written    int
	Duplicates int // Records already present in the store at commit time
	RecordIDs  []ID
}
