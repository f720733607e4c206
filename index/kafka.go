package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes signals to a Kafka topic from a background goroutine.
type KafkaNotifier struct {
	writer       messageWriter
	mu           sync.RWMutex // guards closed and sends on queue
	closed       bool
	queue        chan Signal
	done         chan struct{}
	dropped      atomic.Int64
	failed       atomic.Int64
	writeTimeout time.Duration
	logger       *slog.Logger
}

var (
	_ Notifier  = (*KafkaNotifier)(nil)
	_ Publisher = (*KafkaNotifier)(nil)
)

// NewKafkaNotifier creates a notifier publishing to topic on broker.
func NewKafkaNotifier(broker, topic string, queueSize int) *KafkaNotifier {
	return NewKafkaNotifierWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: false,
	}, queueSize)
}

// NewKafkaNotifierWithWriter builds a notifier using a custom writer (tests).
func NewKafkaNotifierWithWriter(writer messageWriter, queueSize int) *KafkaNotifier {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	n := &KafkaNotifier{
		writer:       writer,
		queue:        make(chan Signal, queueSize),
		done:         make(chan struct{}),
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default().With("component", "index-kafka"),
	}
	go n.run()
	return n
}

// Notify enqueues the signal. It drops the signal if the queue is full or
// the notifier is closed.
func (n *KafkaNotifier) Notify(ctx context.Context, signal Signal) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		dropped := n.dropped.Add(1)
		n.logger.Warn("index signal dropped after close", "job", signal.JobID, "sequence", signal.Sequence, "dropped", dropped)
		return
	}
	select {
	case n.queue <- signal:
	default:
		dropped := n.dropped.Add(1)
		n.logger.Warn("index signal dropped", "job", signal.JobID, "sequence", signal.Sequence, "dropped", dropped)
	}
}

// Dropped returns the number of signals dropped on overflow or after Close.
func (n *KafkaNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Failed returns the number of signals the writer rejected.
func (n *KafkaNotifier) Failed() int64 {
	return n.failed.Load()
}

// Close drains the queue and closes the writer. Later Close calls only
// wait for the drain.
func (n *KafkaNotifier) Close() error {
	n.mu.Lock()
	first := !n.closed
	if first {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	<-n.done
	if !first {
		return nil
	}
	return n.writer.Close()
}

func (n *KafkaNotifier) run() {
	defer close(n.done)
	for signal := range n.queue {
		if err := n.Publish(context.Background(), signal); err != nil {
			n.failed.Add(1)
			n.logger.Warn("failed to publish index signal", "job", signal.JobID, "sequence", signal.Sequence, "err", err)
		}
	}
}

// Publish writes the signal directly, bypassing the queue.
func (n *KafkaNotifier) Publish(ctx context.Context, signal Signal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(signal.JobID),
		Value: payload,
		Time:  signal.At,
	}
	return n.writer.WriteMessages(ctx, msg)
}
