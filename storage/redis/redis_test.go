package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory kvClient.
type fakeClient struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		values: make(map[string][]byte),
		ttls:   make(map[string]time.Duration),
	}
}

func (c *fakeClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = []byte(value)
	c.ttls[key] = ttl
	return true, nil
}

func (c *fakeClient) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.values[key]
	return ok, nil
}

func (c *fakeClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestFingerprintIndex_AddAndContains(t *testing.T) {
	client := newFakeClient()
	index := newFingerprintIndex(client, "", time.Hour)
	ctx := context.Background()
	fp := core.Fingerprint("pmid:123")

	found, err := index.Contains(ctx, fp)
	require.NoError(t, err)
	assert.False(t, found)

	added, err := index.Add(ctx, fp)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = index.Add(ctx, fp)
	require.NoError(t, err)
	assert.False(t, added)

	found, err = index.Contains(ctx, fp)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, time.Hour, client.ttls[DefaultFingerprintPrefix+"pmid:123"])
}

func TestFingerprintIndex_ErrorsAreTransient(t *testing.T) {
	client := newFakeClient()
	client.err = assert.AnError
	index := newFingerprintIndex(client, "test:", 0)

	_, err := index.Add(context.Background(), "doi:10.1/abc")
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestStatusMirror(t *testing.T) {
	client := newFakeClient()
	mirror := newStatusMirror(client, "jobs:", time.Minute)
	ctx := context.Background()

	_, ok, err := mirror.GetJob(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	job := &core.Job{
		ID:        "job-1",
		Source:    core.SourceConfig{Kind: "pubmed", Name: "cardio backfill"},
		State:     core.JobStateRunning,
		Counters:  core.Counters{Fetched: 100, Written: 90, Failed: 4, Duplicates: 6},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, mirror.PublishJob(ctx, job))
	assert.Contains(t, client.values, "jobs:job-1")

	got, ok, err := mirror.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.Counters, got.Counters)
	assert.Equal(t, core.JobStateRunning, got.State)

	require.NoError(t, mirror.Close())
	assert.True(t, client.closed)
}
