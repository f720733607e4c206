package index

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	block    chan struct{}
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestChannelNotifier_DropsOnOverflow(t *testing.T) {
	n := NewChannelNotifier(2)
	ctx := context.Background()

	for i := range 5 {
		n.Notify(ctx, Signal{JobID: "job", Sequence: uint64(i + 1)})
	}

	assert.Equal(t, int64(3), n.Dropped())
	first := <-n.Signals()
	second := <-n.Signals()
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
}

func TestKafkaNotifier_Publishes(t *testing.T) {
	writer := &fakeWriter{}
	n := NewKafkaNotifierWithWriter(writer, 8)

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	n.Notify(context.Background(), Signal{
		JobID:      "job-1",
		Sequence:   4,
		RecordIDs:  []core.ID{1, 2, 3},
		Partitions: []string{"oncology"},
		At:         at,
	})
	require.NoError(t, n.Close())

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "job-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var got Signal
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, []core.ID{1, 2, 3}, got.RecordIDs)
	assert.True(t, writer.closed)
}

func TestKafkaNotifier_NeverBlocks(t *testing.T) {
	writer := &fakeWriter{block: make(chan struct{})}
	n := NewKafkaNotifierWithWriter(writer, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 10 {
			n.Notify(context.Background(), Signal{JobID: "job", Sequence: uint64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a stalled writer")
	}
	assert.GreaterOrEqual(t, n.Dropped(), int64(8))

	close(writer.block)
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_CountsWriteFailures(t *testing.T) {
	writer := &fakeWriter{err: assert.AnError}
	n := NewKafkaNotifierWithWriter(writer, 4)

	n.Notify(context.Background(), Signal{JobID: "job"})
	require.NoError(t, n.Close())

	assert.Equal(t, int64(1), n.Failed())
}

func TestChannelNotifier_PublishWaitsForRoom(t *testing.T) {
	n := NewChannelNotifier(1)
	require.NoError(t, n.Publish(context.Background(), Signal{JobID: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := n.Publish(ctx, Signal{JobID: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	<-n.Signals()
	require.NoError(t, n.Publish(context.Background(), Signal{JobID: "c"}))
	assert.Equal(t, "c", (<-n.Signals()).JobID)
	assert.Zero(t, n.Dropped())
}

func TestKafkaNotifier_PublishReportsFailure(t *testing.T) {
	w := &fakeWriter{err: assert.AnError}
	n := NewKafkaNotifierWithWriter(w, 4)
	defer n.Close()

	err := n.Publish(context.Background(), Signal{JobID: "job-1", Sequence: 3})
	assert.ErrorIs(t, err, assert.AnError)

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	require.NoError(t, n.Publish(context.Background(), Signal{JobID: "job-1", Sequence: 3}))

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.messages, 1)
	assert.Equal(t, "job-1", string(w.messages[0].Key))
	assert.Zero(t, n.Failed(), "direct publishes are not counted as queue failures")
}

func TestKafkaNotifier_NotifyAfterCloseDrops(t *testing.T) {
	writer := &fakeWriter{}
	n := NewKafkaNotifierWithWriter(writer, 8)
	require.NoError(t, n.Close())

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Signal{JobID: "job-1", Sequence: 1})
	})
	assert.Equal(t, int64(1), n.Dropped())
	assert.Empty(t, writer.messages)
	assert.NoError(t, n.Close())
}
