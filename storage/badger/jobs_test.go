package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepository(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "middle", "new"} {
		err := store.Jobs.SaveJob(ctx, &core.Job{
			ID:        id,
			Source:    core.SourceConfig{Kind: "pubmed"},
			State:     core.JobStatePending,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	job, err := store.Jobs.GetJob(ctx, "middle")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatePending, job.State)

	job.State = core.JobStateRunning
	job.Counters.Written = 12
	job.RecordError(core.JobError{Kind: "validation", Message: "bad record"})
	require.NoError(t, store.Jobs.SaveJob(ctx, job))

	job, err = store.Jobs.GetJob(ctx, "middle")
	require.NoError(t, err)
	assert.Equal(t, core.JobStateRunning, job.State)
	assert.Equal(t, int64(12), job.Counters.Written)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "bad record", job.LastError.Message)

	jobs, err := store.Jobs.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, "old", jobs[2].ID)

	_, err = store.Jobs.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFingerprintIndex(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	fp := core.Fingerprint("doi:10.1000/xyz")

	found, err := store.Fingerprints.Contains(ctx, fp)
	require.NoError(t, err)
	assert.False(t, found)

	added, err := store.Fingerprints.Add(ctx, fp)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.Fingerprints.Add(ctx, fp)
	require.NoError(t, err)
	assert.False(t, added)

	found, err = store.Fingerprints.Contains(ctx, fp)
	require.NoError(t, err)
	assert.True(t, found)
}
