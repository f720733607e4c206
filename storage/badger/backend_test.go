package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredRecord(externalID, title string, subjects ...string) *core.StoredRecord {
	rec := core.Record{
		ExternalID:  externalID,
		Source:      "pubmed",
		Title:       title,
		PublishedAt: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	rec.Fingerprint = core.FingerprintOf(&rec)
	return &core.StoredRecord{
		Id:       core.RecordIDFor(rec.Fingerprint),
		Record:   rec,
		Score:    0.8,
		Subjects: subjects,
	}
}

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir+"/db", false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(nil, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenStore(dir, false)
	require.NoError(t, err)

	rec := newStoredRecord("100", "Durable record")
	_, err = store.Records.CommitBatch(ctx, &storage.BatchCommit{
		JobID:      "job-1",
		Records:    []*core.StoredRecord{rec},
		Checkpoint: &core.Checkpoint{JobID: "job-1", Cursor: core.Cursor("c1"), Sequence: 1},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenStore(dir, false)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Records.GetRecord(ctx, rec.Id)
	require.NoError(t, err)
	assert.Equal(t, "Durable record", got.Record.Title)

	cp, err := store.Checkpoints.LoadCheckpoint(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.Cursor("c1"), cp.Cursor)
	assert.Equal(t, int64(1), cp.Counters.Written)
}

func TestTranslateTxError(t *testing.T) {
	assert.NoError(t, translateTxError(nil))

	err := translateTxError(fmt.Errorf("commit: %w", badger.ErrConflict))
	assert.ErrorIs(t, err, storage.ErrTransactionFailed)
	assert.True(t, core.IsRetryable(err))

	plain := assert.AnError
	assert.Equal(t, plain, translateTxError(plain))
}
