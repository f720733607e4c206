package ingestion

import (
	"testing"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ended job", func(t *testing.T) {
		job := &core.Job{
			StartedAt: start,
			EndedAt:   start.Add(2 * time.Minute),
			Counters:  core.Counters{Fetched: 100, Written: 80, Duplicates: 15, Failed: 5},
		}
		s := Summarize(job, start.Add(time.Hour))
		assert.InDelta(t, 0.8, s.SuccessRate, 1e-9)
		assert.InDelta(t, 2.0, s.ProcessingMinutes, 1e-9)
		assert.InDelta(t, 50.0, s.RecordsPerMinute, 1e-9)
	})

	t.Run("running job measured to now", func(t *testing.T) {
		job := &core.Job{
			StartedAt: start,
			Counters:  core.Counters{Written: 30},
		}
		s := Summarize(job, start.Add(3*time.Minute))
		assert.InDelta(t, 3.0, s.ProcessingMinutes, 1e-9)
		assert.InDelta(t, 10.0, s.RecordsPerMinute, 1e-9)
	})

	t.Run("never started", func(t *testing.T) {
		s := Summarize(&core.Job{}, start)
		assert.Zero(t, s)
	})
}

func TestStatusOf(t *testing.T) {
	now := time.Now().UTC()
	job := &core.Job{
		ID:          "job-1",
		Source:      core.SourceConfig{Kind: "file", Name: "replay"},
		State:       core.JobStatePaused,
		Sequence:    4,
		ResumedFrom: "job-0",
		CreatedAt:   now,
	}
	job.RecordError(core.JobError{Kind: string(core.FailureScoring), Message: "timeout", At: now})

	st := StatusOf(job, now)
	assert.Equal(t, "replay", st.Name)
	assert.Equal(t, core.JobStatePaused, st.State)
	assert.Equal(t, uint64(4), st.Sequence)
	assert.Equal(t, "job-0", st.ResumedFrom)
	if assert.NotNil(t, st.LastError) {
		assert.Equal(t, "timeout", st.LastError.Message)
	}
	assert.Len(t, st.RecentErrors, 1)
}
