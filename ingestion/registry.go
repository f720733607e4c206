package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// StatusMirror receives a copy of every job update, for readers outside
// this process. Failures are logged and never affect the job.
type StatusMirror interface {
	PublishJob(ctx context.Context, job *core.Job) error
}

// jobEntry is the registry's view of one job.
//
// control serializes control operations on the job. mu guards job and run;
// it is only held briefly, so status reads never wait on control operations.
type jobEntry struct {
	control sync.Mutex
	mu      sync.RWMutex
	job     *core.Job
	run     *runHandle
}

// snapshot returns a copy of the job.
func (e *jobEntry) snapshot() *core.Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.job.Clone()
}

func (e *jobEntry) currentRun() *runHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run
}

func (e *jobEntry) setRun(h *runHandle) {
	e.mu.Lock()
	e.run = h
	e.mu.Unlock()
}

// Registry tracks jobs in memory and persists every change.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*jobEntry
	jobs        storage.JobRepository
	checkpoints storage.CheckpointRepository
	mirror      StatusMirror
	logger      *slog.Logger
}

// NewRegistry creates a registry over the given repositories.
func NewRegistry(jobs storage.JobRepository, checkpoints storage.CheckpointRepository, mirror StatusMirror, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries:     make(map[string]*jobEntry),
		jobs:        jobs,
		checkpoints: checkpoints,
		mirror:      mirror,
		logger:      logger.With("component", "registry"),
	}
}

// create persists a new job and registers it.
func (r *Registry) create(ctx context.Context, job *core.Job) (*jobEntry, error) {
	if err := r.jobs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	e := r.register(job)
	r.publish(ctx, job)
	return e, nil
}

// register adds an already persisted job. An existing entry is kept.
func (r *Registry) register(job *core.Job) *jobEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[job.ID]; ok {
		return e
	}
	e := &jobEntry{job: job.Clone()}
	r.entries[job.ID] = e
	return e
}

func (r *Registry) entry(id string) (*jobEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (*core.Job, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

// List returns snapshots of all registered jobs, newest first.
func (r *Registry) List() []*core.Job {
	r.mu.RLock()
	entries := make([]*jobEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	jobs := make([]*core.Job, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, e.snapshot())
	}
	slices.SortFunc(jobs, func(a, b *core.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return jobs
}

func (r *Registry) entriesSnapshot() []*jobEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*jobEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	return entries
}

// update applies fn to a copy of the job, persists the copy and swaps it in.
// If fn or the save fails the registered job is unchanged.
func (r *Registry) update(ctx context.Context, e *jobEntry, fn func(*core.Job) error) (*core.Job, error) {
	e.mu.Lock()
	next := e.job.Clone()
	if err := fn(next); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	if err := r.jobs.SaveJob(ctx, next); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("saving job %s: %w", next.ID, err)
	}
	e.job = next
	e.mu.Unlock()

	snapshot := next.Clone()
	r.publish(ctx, snapshot)
	return snapshot, nil
}

// transition moves the job to state, failing with ErrInvalidState when the
// state machine does not allow it.
func (r *Registry) transition(ctx context.Context, e *jobEntry, to core.JobState) (*core.Job, error) {
	return r.update(ctx, e, func(j *core.Job) error {
		if !core.CanTransition(j.State, to) {
			return fmt.Errorf("%w: job %s is %s, cannot become %s", ErrInvalidState, j.ID, j.State, to)
		}
		now := time.Now().UTC()
		j.State = to
		switch {
		case to == core.JobStateRunning && j.StartedAt.IsZero():
			j.StartedAt = now
		case to.IsTerminal():
			j.EndedAt = now
		}
		return nil
	})
}

// LoadCheckpoint returns the last committed checkpoint of a job, or nil.
func (r *Registry) LoadCheckpoint(ctx context.Context, jobID string) (*core.Checkpoint, error) {
	return r.checkpoints.LoadCheckpoint(ctx, jobID)
}

func (r *Registry) publish(ctx context.Context, job *core.Job) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.PublishJob(ctx, job); err != nil {
		r.logger.Warn("failed to mirror job status", "job", job.ID, "err", err)
	}
}
