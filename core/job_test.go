package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to JobState }{
		{JobStatePending, JobStateRunning},
		{JobStateRunning, JobStatePaused},
		{JobStateRunning, JobStateCompleted},
		{JobStateRunning, JobStateCancelled},
		{JobStateRunning, JobStateFailed},
		{JobStatePaused, JobStateRunning},
		{JobStatePaused, JobStateCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to JobState }{
		{JobStatePending, JobStatePaused},
		{JobStatePaused, JobStateCompleted},
		{JobStatePaused, JobStateFailed},
		{JobStateCompleted, JobStateRunning},
		{JobStateCancelled, JobStateRunning},
		{JobStateFailed, JobStateRunning},
		{JobStateCancelled, JobStateCancelled},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestJobState_IsTerminal(t *testing.T) {
	assert.True(t, JobStateCompleted.IsTerminal())
	assert.True(t, JobStateCancelled.IsTerminal())
	assert.True(t, JobStateFailed.IsTerminal())
	assert.False(t, JobStatePending.IsTerminal())
	assert.False(t, JobStateRunning.IsTerminal())
	assert.False(t, JobStatePaused.IsTerminal())
	assert.False(t, JobState("bogus").IsValid())
}

func TestJob_CloneIsDeep(t *testing.T) {
	job := &Job{
		ID:           "j1",
		SubjectAreas: []string{"oncology"},
		Cursor:       Cursor("abc"),
		Source:       SourceConfig{Kind: "pubmed", Params: map[string]string{"k": "v"}},
		LastError:    &JobError{Message: "boom"},
	}

	c := job.Clone()
	c.SubjectAreas[0] = "changed"
	c.Cursor[0] = 'z'
	c.Source.Params["k"] = "changed"
	c.LastError.Message = "changed"

	assert.Equal(t, "oncology", job.SubjectAreas[0])
	assert.Equal(t, Cursor("abc"), job.Cursor)
	assert.Equal(t, "v", job.Source.Params["k"])
	assert.Equal(t, "boom", job.LastError.Message)
}

func TestJob_RecordErrorBounded(t *testing.T) {
	job := &Job{}
	for i := 0; i < MaxRecentErrors+5; i++ {
		job.RecordError(JobError{Message: fmt.Sprintf("err %d", i)})
	}

	require.Len(t, job.RecentErrors, MaxRecentErrors)
	assert.Equal(t, fmt.Sprintf("err %d", MaxRecentErrors+4), job.LastError.Message)
	assert.Equal(t, "err 5", job.RecentErrors[0].Message)
}

func TestJob_AddSubjectAreas(t *testing.T) {
	job := &Job{SubjectAreas: []string{"cardiology"}}
	job.AddSubjectAreas("cardiology", "oncology", "", "oncology")
	assert.Equal(t, []string{"cardiology", "oncology"}, job.SubjectAreas)
}

func TestClassifyFailure(t *testing.T) {
	base := errors.New("connection reset")

	assert.Equal(t, FailureTransientSource, ClassifyFailure(fmt.Errorf("fetch: %w", MarkTransientSource(base))))
	assert.Equal(t, FailureTransientWrite, ClassifyFailure(MarkTransientWrite(base)))
	assert.Equal(t, FailureFatalConfiguration, ClassifyFailure(MarkFatal(base, "check the base URL")))
	assert.Equal(t, FailureUnknown, ClassifyFailure(base))

	assert.True(t, IsRetryable(MarkTransientSource(base)))
	assert.False(t, IsRetryable(MarkFatal(MarkTransientSource(base), "")), "fatal wins over transient")
	assert.Nil(t, MarkTransientSource(nil))
}

func TestNewJobError(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	je := NewJobError(MarkFatal(errors.New("404 from source"), "verify the query"), at)

	assert.Equal(t, string(FailureFatalConfiguration), je.Kind)
	assert.Contains(t, je.Message, "404 from source")
	assert.Equal(t, "verify the query", je.Hint)
	assert.Equal(t, at, je.At)
}
