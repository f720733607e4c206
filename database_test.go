package medingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/medingest/ai/mock"
	"github.com/poiesic/medingest/config"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/index"
	"github.com/poiesic/medingest/ingestion"
	"github.com/poiesic/medingest/reindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "db")
	cfg.Ingest.BatchSize = 10
	cfg.Retry.Commit.BaseDelay = time.Millisecond
	cfg.Retry.Fetch.BaseDelay = time.Millisecond
	return cfg
}

// writeRecords writes n JSONL records and returns the file path.
func writeRecords(t *testing.T, n int, title string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for i := range n {
		require.NoError(t, enc.Encode(core.Record{
			ExternalID:  fmt.Sprint(i),
			Source:      "pubmed",
			Title:       fmt.Sprintf(title, i),
			Abstract:    "A randomized controlled trial with long term follow up.",
			Journal:     "The Lancet",
			PublishedAt: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		}))
	}
	return path
}

func runFileJob(t *testing.T, db *Database, path string) ingestion.Status {
	t.Helper()
	ctx := context.Background()
	id, err := db.Service().StartIngestion(ctx, core.SourceConfig{Kind: "file", Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Service().Wait(ctx, id))
	status, err := db.Service().GetStatus(ctx, id)
	require.NoError(t, err)
	return status
}

func TestOpen(t *testing.T) {
	t.Run("opens and closes", func(t *testing.T) {
		db, err := Open(testConfig(t))
		require.NoError(t, err)
		require.NotNil(t, db)

		assert.NotNil(t, db.Service())
		assert.NotNil(t, db.Records())
		assert.NotNil(t, db.Partitions())
		assert.ElementsMatch(t, []string{"file", "pubmed"}, db.Sources().Kinds())
		assert.NoError(t, db.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.Path = filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(cfg.Storage.Path, []byte("test"), 0o644))

		db, err := Open(cfg)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("error with invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Ingest.Workers = 0
		_, err := Open(cfg)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

func TestDatabase_MalformedLinesCountAsFailed(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	path := writeRecords(t, 2, "Hematology registry %d")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"external_id\": \"broken\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	status := runFileJob(t, db, path)
	assert.Equal(t, core.JobStateCompleted, status.State)
	assert.Equal(t, int64(3), status.Counters.Fetched)
	assert.Equal(t, int64(2), status.Counters.Written)
	assert.Equal(t, int64(1), status.Counters.Failed)
	require.NotNil(t, status.LastError)
	assert.Equal(t, string(core.FailureValidation), status.LastError.Kind)
}

func TestDatabase_IngestsFile(t *testing.T) {
	notifier := index.NewChannelNotifier(64)
	db, err := Open(testConfig(t), WithNotifier(notifier))
	require.NoError(t, err)
	defer db.Close()

	status := runFileJob(t, db, writeRecords(t, 25, "Tumor growth in oncology trial %d"))
	assert.Equal(t, core.JobStateCompleted, status.State)
	assert.Equal(t, int64(25), status.Counters.Written)
	assert.Equal(t, uint64(3), status.Sequence)

	count, err := db.Records().CountRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, count)

	p, err := db.Partitions().GetPartition(context.Background(), "oncology")
	require.NoError(t, err)
	assert.Equal(t, "oncology", p.Name)
	assert.Len(t, notifier.Signals(), 3)
}

func TestDatabase_AIProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Score = true
	cfg.AI.Classify = true
	provider := mock.NewMockProvider()

	db, err := Open(cfg, WithAIProvider(provider))
	require.NoError(t, err)

	status := runFileJob(t, db, writeRecords(t, 5, "Neurology cohort %d"))
	assert.Equal(t, core.JobStateCompleted, status.State)
	assert.Equal(t, int64(5), status.Counters.Written)
	assert.Equal(t, 5, provider.GetMockAssessor().CallCount())
	assert.Equal(t, 5, provider.GetMockClassifier().CallCount())
	assert.Contains(t, status.SubjectAreas, "neurology")

	require.NoError(t, db.Close())
	assert.True(t, provider.Closed())
}

func TestDatabase_Reindexer(t *testing.T) {
	t.Run("requires an index transport", func(t *testing.T) {
		db, err := Open(testConfig(t))
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Reindexer(nil, nil)
		assert.ErrorIs(t, err, ErrNoIndex)
	})

	t.Run("replays stored records", func(t *testing.T) {
		notifier := index.NewChannelNotifier(64)
		db, err := Open(testConfig(t), WithNotifier(notifier))
		require.NoError(t, err)
		defer db.Close()

		runFileJob(t, db, writeRecords(t, 12, "Cardiology outcomes %d"))
		for len(notifier.Signals()) > 0 {
			<-notifier.Signals()
		}

		cfg := reindex.DefaultConfig()
		cfg.BatchSize = 5
		r, err := db.Reindexer(cfg, nil)
		require.NoError(t, err)
		stats, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 12, stats.Records)
		assert.Equal(t, 3, stats.Signals)
		assert.Len(t, notifier.Signals(), 3)
	})
}

func TestDatabase_RecoverAfterReopen(t *testing.T) {
	cfg := testConfig(t)
	db, err := Open(cfg)
	require.NoError(t, err)
	status := runFileJob(t, db, writeRecords(t, 4, "Dermatology case %d"))
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	n, err := db.Service().Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "completed jobs are not run again")

	got, err := db.Service().GetStatus(ctx, status.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStateCompleted, got.State)
	assert.Equal(t, int64(4), got.Counters.Written)
}
