package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/index"
	"github.com/poiesic/medingest/retry"
	"github.com/poiesic/medingest/storage"
	"github.com/poiesic/medingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	signals  []index.Signal
	failures []error
	calls    int
}

func (p *fakePublisher) Publish(ctx context.Context, s index.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		if err != nil {
			return err
		}
	}
	p.signals = append(p.signals, s)
	return nil
}

func seedStore(t *testing.T, n int, subjectOf func(i int) string) *badger.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	records := make([]*core.StoredRecord, 0, n)
	for i := range n {
		rec := core.Record{
			ExternalID:  fmt.Sprint(i),
			Source:      "pubmed",
			Title:       fmt.Sprintf("Trial %d", i),
			PublishedAt: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		rec.Fingerprint = core.FingerprintOf(&rec)
		records = append(records, &core.StoredRecord{
			Id:       core.RecordIDFor(rec.Fingerprint),
			Record:   rec,
			Score:    0.9,
			Subjects: []string{subjectOf(i)},
			JobID:    "seed",
		})
	}
	_, err = store.Records.CommitBatch(context.Background(), &storage.BatchCommit{
		JobID:      "seed",
		Records:    records,
		Checkpoint: &core.Checkpoint{JobID: "seed", Sequence: 1},
	})
	require.NoError(t, err)
	return store
}

func testConfig(batch int) *Config {
	cfg := DefaultConfig()
	cfg.BatchSize = batch
	cfg.ReportInterval = 1
	cfg.Policy.BaseDelay = time.Millisecond
	cfg.Policy.MaxDelay = time.Millisecond
	return cfg
}

func TestReindexer_PublishesEveryRecord(t *testing.T) {
	store := seedStore(t, 25, func(i int) string {
		if i%2 == 0 {
			return "oncology"
		}
		return "cardiology"
	})
	pub := &fakePublisher{}
	var out bytes.Buffer

	stats, err := NewReindexer(store.Records, pub, testConfig(10), &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, stats.Records)
	assert.Equal(t, 3, stats.Signals)
	require.Len(t, pub.signals, 3)

	seen := map[core.ID]bool{}
	for i, s := range pub.signals {
		assert.Equal(t, JobID, s.JobID)
		assert.Equal(t, uint64(i+1), s.Sequence)
		for _, id := range s.RecordIDs {
			assert.False(t, seen[id], "record %d published twice", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 25)
	assert.Equal(t, []string{"cardiology", "oncology"}, pub.signals[0].Partitions)
	assert.Len(t, pub.signals[2].RecordIDs, 5)
	assert.Contains(t, out.String(), "25/25")
	assert.Contains(t, out.String(), "Reindex complete")
}

func TestReindexer_PartitionFilter(t *testing.T) {
	store := seedStore(t, 12, func(i int) string {
		if i < 4 {
			return "neurology"
		}
		return "oncology"
	})
	pub := &fakePublisher{}
	cfg := testConfig(3)
	cfg.Partition = "Neurology"

	stats, err := NewReindexer(store.Records, pub, cfg, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 2, stats.Signals)
	for _, s := range pub.signals {
		assert.Equal(t, []string{"neurology"}, s.Partitions)
	}
}

func TestReindexer_RetriesPublish(t *testing.T) {
	store := seedStore(t, 4, func(int) string { return "oncology" })
	pub := &fakePublisher{failures: []error{errors.New("broker down"), errors.New("broker down")}}

	stats, err := NewReindexer(store.Records, pub, testConfig(10), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Signals)
	assert.Equal(t, 3, pub.calls)
}

func TestReindexer_StopsWhenRetriesExhausted(t *testing.T) {
	store := seedStore(t, 6, func(int) string { return "oncology" })
	down := errors.New("broker down")
	pub := &fakePublisher{failures: []error{nil, down, down, down}}

	stats, err := NewReindexer(store.Records, pub, testConfig(3), nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 1, stats.Signals)
	assert.Equal(t, 3, stats.Records)
}

func TestReindexer_EmptyStore(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	pub := &fakePublisher{}
	var out bytes.Buffer

	stats, err := NewReindexer(store.Records, pub, nil, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Signals)
	assert.Zero(t, pub.calls)
	assert.Contains(t, out.String(), "No records")
}

func TestReindexer_InvalidConfig(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig(0)
	_, err = NewReindexer(store.Records, &fakePublisher{}, cfg, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	cfg = testConfig(5)
	cfg.Policy.MaxAttempts = 0
	_, err = NewReindexer(store.Records, &fakePublisher{}, cfg, nil).Run(context.Background())
	assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)
}
