// Package index hands committed batches to the external vector index.
//
// Notification is fire-and-forget: Notify never blocks the caller and never
// fails the batch. When the downstream cannot keep up, signals are dropped
// and counted; the reindex package can replay them from the store.
package index

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/medingest/core"
)

// Signal announces that a batch of records is durably stored.
type Signal struct {
	JobID      string    `json:"job_id"`
	Sequence   uint64    `json:"sequence"`
	RecordIDs  []core.ID `json:"record_ids"`
	Partitions []string  `json:"partitions,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier accepts index signals.
type Notifier interface {
	// Notify enqueues the signal. It must return immediately.
	Notify(ctx context.Context, signal Signal)
}

// Publisher delivers a signal and reports whether it was accepted. Unlike
// Notify, Publish may block until ctx ends.
type Publisher interface {
	Publish(ctx context.Context, signal Signal) error
}

// Discard is a Notifier that drops every signal.
type Discard struct{}

var _ Notifier = Discard{}

func (Discard) Notify(context.Context, Signal) {}

// ChannelNotifier delivers signals on a buffered channel.
type ChannelNotifier struct {
	ch      chan Signal
	dropped atomic.Int64
	logger  *slog.Logger
}

var (
	_ Notifier  = (*ChannelNotifier)(nil)
	_ Publisher = (*ChannelNotifier)(nil)
)

// NewChannelNotifier creates a ChannelNotifier holding up to size pending signals.
func NewChannelNotifier(size int) *ChannelNotifier {
	if size <= 0 {
		size = 1
	}
	return &ChannelNotifier{
		ch:     make(chan Signal, size),
		logger: slog.Default().With("component", "index-channel"),
	}
}

// Notify enqueues the signal or drops it if the buffer is full.
func (n *ChannelNotifier) Notify(ctx context.Context, signal Signal) {
	select {
	case n.ch <- signal:
	default:
		dropped := n.dropped.Add(1)
		n.logger.Warn("index signal dropped", "job", signal.JobID, "sequence", signal.Sequence, "dropped", dropped)
	}
}

// Publish waits for room in the buffer.
func (n *ChannelNotifier) Publish(ctx context.Context, signal Signal) error {
	select {
	case n.ch <- signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signals returns the receive side of the queue.
func (n *ChannelNotifier) Signals() <-chan Signal {
	return n.ch
}

// Dropped returns the number of signals dropped on overflow.
func (n *ChannelNotifier) Dropped() int64 {
	return n.dropped.Load()
}
