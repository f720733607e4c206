package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// DefaultStatusPrefix namespaces job status keys.
const DefaultStatusPrefix = "medingest:job:"

// StatusMirror publishes job snapshots to Redis.
type StatusMirror struct {
	client kvClient
	prefix string
	ttl    time.Duration
}

// NewStatusMirror connects to Redis at addr.
func NewStatusMirror(addr, prefix string, ttl time.Duration) *StatusMirror {
	return newStatusMirror(newRedisClient(addr), prefix, ttl)
}

func newStatusMirror(client kvClient, prefix string, ttl time.Duration) *StatusMirror {
	if prefix == "" {
		prefix = DefaultStatusPrefix
	}
	return &StatusMirror{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Close closes the Redis client.
func (m *StatusMirror) Close() error {
	return m.client.Close()
}

// PublishJob writes the job snapshot.
func (m *StatusMirror) PublishJob(ctx context.Context, job *core.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return m.client.Set(ctx, m.prefix+job.ID, payload, m.ttl)
}

// GetJob reads a job snapshot. The bool is false when no snapshot exists.
func (m *StatusMirror) GetJob(ctx context.Context, jobID string) (*core.Job, bool, error) {
	val, ok, err := m.client.Get(ctx, m.prefix+jobID)
	if err != nil || !ok {
		return nil, false, err
	}
	var job core.Job
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, false, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return &job, true, nil
}
