package storage

import (
	"testing"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_CursorSurvivesEncoding(t *testing.T) {
	tests := []struct {
		name   string
		cursor core.Cursor
	}{
		{"binary", core.Cursor{0x00, 0xff, '{', '"'}},
		{"empty", core.Cursor{}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := &core.Checkpoint{
				JobID:     "job-1",
				Cursor:    tt.cursor,
				Counters:  core.Counters{Fetched: 50, Written: 48, Duplicates: 2},
				Sequence:  3,
				Exhausted: true,
				UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
			}

			decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(cp))
			require.NoError(t, err)
			assert.Equal(t, cp, decoded)
		})
	}
}

func TestUnmarshalCheckpoint_Corrupt(t *testing.T) {
	valid := MarshalCheckpoint(&core.Checkpoint{
		JobID:     "a",
		Cursor:    core.Cursor("offset:42"),
		UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-1]},
		{"cut inside cursor", valid[:4]},
		{"missing job id", MarshalCheckpoint(&core.Checkpoint{Sequence: 4})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCheckpoint(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestRecord_Encoding(t *testing.T) {
	record := &core.StoredRecord{
		Id: 42,
		Record: core.Record{
			ExternalID:  "12345",
			Source:      "pubmed",
			Title:       "Statins after myocardial infarction",
			DOI:         "10.1000/xyz",
			PublishedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Authors:     []string{"Smith J", "Doe A"},
			MeSHTerms:   []string{"Myocardial Infarction"},
			Metadata:    map[string]string{"pmcid": "PMC1", "issn": "1234-5678"},
			Fingerprint: "pmid:12345",
		},
		Score:         0.75,
		ScoreDegraded: true,
		Subjects:      []string{"cardiology"},
		JobID:         "job-1",
		InsertedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	decoded, err := UnmarshalRecord(MarshalRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
	assert.Nil(t, decoded.Record.Keywords)
}

func TestPartition_Encoding(t *testing.T) {
	partition := &core.Partition{Id: 7, Name: "oncology", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}

	decoded, err := UnmarshalPartition(MarshalPartition(partition))
	require.NoError(t, err)
	assert.Equal(t, partition, decoded)
}

func TestJob_Encoding(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &core.Job{
		ID: "job-2",
		Source: core.SourceConfig{
			Kind:         "pubmed",
			Query:        "statins",
			SubjectAreas: []string{"cardiology"},
			MaxDocuments: 500,
			DateFrom:     at.AddDate(-1, 0, 0),
			Params:       map[string]string{"retmax": "100"},
		},
		SubjectAreas: []string{"cardiology", "endocrinology"},
		State:        core.JobStatePaused,
		Cursor:       core.Cursor("page:3"),
		Sequence:     3,
		Counters:     core.Counters{Fetched: 300, Written: 290, Failed: 10},
		CreatedAt:    at,
		StartedAt:    at,
		UpdatedAt:    at.Add(time.Minute),
		ResumedFrom:  "job-1",
	}
	job.RecordError(core.JobError{Kind: string(core.FailureScoring), Message: "timeout", At: at})

	decoded, err := UnmarshalJob(MarshalJob(job))
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
	assert.True(t, decoded.EndedAt.IsZero())
}

func TestUnmarshalJob_RejectsUnknownState(t *testing.T) {
	_, err := UnmarshalJob(MarshalJob(&core.Job{ID: "j", State: "sleeping"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	job, err := UnmarshalJob(MarshalJob(&core.Job{ID: "j", State: core.JobStatePaused}))
	require.NoError(t, err)
	assert.Equal(t, core.JobStatePaused, job.State)
}
