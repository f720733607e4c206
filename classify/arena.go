package classify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
	"golang.org/x/sync/singleflight"
)

// DefaultStoreTimeout bounds one partition store call.
const DefaultStoreTimeout = 30 * time.Second

// Arena ensures subject partitions exist. Partitions are created at most
// once per name: concurrent callers in this process share one store call,
// and the store's create-if-absent arbitrates between processes.
type Arena struct {
	repo    storage.PartitionRepository
	known   sync.Map // normalized name -> *core.Partition
	group   singleflight.Group
	created atomic.Int64
	timeout time.Duration
	logger  *slog.Logger
}

// NewArena creates an arena over repo.
func NewArena(repo storage.PartitionRepository, logger *slog.Logger) *Arena {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arena{
		repo:    repo,
		timeout: DefaultStoreTimeout,
		logger:  logger.With("component", "arena"),
	}
}

// EnsurePartition returns the partition for name, creating it if absent.
func (a *Arena) EnsurePartition(ctx context.Context, name string) (*core.Partition, error) {
	key := core.NormalizePartitionName(name)
	if key == "" {
		return nil, storage.ErrInvalidPartitionName
	}
	if p, ok := a.known.Load(key); ok {
		return p.(*core.Partition), nil
	}

	// The shared store call outlives any single caller; each caller only
	// stops waiting when its own context ends.
	flight := a.group.DoChan(key, func() (any, error) {
		if p, ok := a.known.Load(key); ok {
			return p, nil
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		p, created, err := a.repo.CreatePartitionIfAbsent(sctx, key)
		if err != nil {
			return nil, err
		}
		if created {
			a.created.Add(1)
			a.logger.Info("created partition", "partition", key)
		}
		a.known.Store(key, p)
		return p, nil
	})
	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, core.MarkTransientWrite(res.Err)
		}
		return res.Val.(*core.Partition), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EnsureAll ensures every named partition, stopping at the first error.
func (a *Arena) EnsureAll(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := a.EnsurePartition(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Created returns how many partitions this arena created.
func (a *Arena) Created() int64 {
	return a.created.Load()
}
