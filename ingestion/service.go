package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/medingest/classify"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/dedup"
	"github.com/poiesic/medingest/quality"
	"github.com/poiesic/medingest/source"
	"github.com/poiesic/medingest/storage"
)

// Stores groups the repositories a Service works on.
type Stores struct {
	Records      storage.RecordRepository
	Partitions   storage.PartitionRepository
	Checkpoints  storage.CheckpointRepository
	Jobs         storage.JobRepository
	Fingerprints storage.FingerprintIndex
}

func (s Stores) validate() error {
	switch {
	case s.Records == nil:
		return fmt.Errorf("%w: records", ErrStoreRequired)
	case s.Partitions == nil:
		return fmt.Errorf("%w: partitions", ErrStoreRequired)
	case s.Checkpoints == nil:
		return fmt.Errorf("%w: checkpoints", ErrStoreRequired)
	case s.Jobs == nil:
		return fmt.Errorf("%w: jobs", ErrStoreRequired)
	case s.Fingerprints == nil:
		return fmt.Errorf("%w: fingerprints", ErrStoreRequired)
	}
	return nil
}

// Service runs ingestion jobs and answers control and status requests.
type Service struct {
	cfg        settings
	stores     Stores
	sources    *source.Registry
	registry   *Registry
	dedup      *dedup.Deduplicator
	scorer     *quality.Safe
	classifier *classify.Safe
	arena      *classify.Arena
	writer     *BatchWriter
	logger     *slog.Logger

	mu       sync.Mutex
	shutdown bool
	runs     sync.WaitGroup
}

// NewService creates a service. Call Recover to pick up persisted jobs.
func NewService(stores Stores, sources *source.Registry, opts ...Option) (*Service, error) {
	if err := stores.validate(); err != nil {
		return nil, err
	}
	if sources == nil {
		return nil, ErrSourcesRequired
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	d := dedup.New(stores.Fingerprints)
	return &Service{
		cfg:        cfg,
		stores:     stores,
		sources:    sources,
		registry:   NewRegistry(stores.Jobs, stores.Checkpoints, cfg.mirror, logger),
		dedup:      d,
		scorer:     quality.NewSafe(cfg.scorer, quality.WithDefaultScore(cfg.defaultScore), quality.WithLogger(logger)),
		classifier: classify.NewSafe(cfg.classifier, logger),
		arena:      classify.NewArena(stores.Partitions, logger),
		writer:     NewBatchWriter(stores.Records, d, cfg.notifier, cfg.commitPolicy, cfg.commitTimeout, logger),
		logger:     logger.With("component", "ingestion"),
	}, nil
}

// Arena returns the partition arena shared by all jobs.
func (s *Service) Arena() *classify.Arena {
	return s.arena
}

// StartIngestion creates a job for cfg and starts it. hints are subject
// areas added to the job's target set and to the source's subject areas.
// An invalid configuration is rejected without creating a job.
func (s *Service) StartIngestion(ctx context.Context, cfg core.SourceConfig, hints []string) (string, error) {
	if s.isShutdown() {
		return "", ErrShutdown
	}

	cfg = (&core.Job{Source: cfg}).Clone().Source
	cfg.SubjectAreas = classify.Normalize(append(slices.Clone(cfg.SubjectAreas), hints...))
	if err := core.ValidateSourceConfig(&cfg); err != nil {
		return "", core.MarkFatal(err, "fix the source configuration and start a new job")
	}

	now := time.Now().UTC()
	job := &core.Job{
		ID:           uuid.NewString(),
		Source:       cfg,
		SubjectAreas: slices.Clone(cfg.SubjectAreas),
		State:        core.JobStatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e, err := s.registry.create(ctx, job)
	if err != nil {
		return "", err
	}
	s.logger.Info("job created", "job", job.ID, "name", cfg.Name, "source", cfg.Kind)

	if err := s.start(ctx, e); err != nil {
		return job.ID, err
	}
	return job.ID, nil
}

// GetStatus returns a consistent snapshot of the job without waiting on
// in-flight work.
func (s *Service) GetStatus(ctx context.Context, jobID string) (Status, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(job, time.Now().UTC()), nil
}

// ListJobs returns the status of every registered job, newest first.
func (s *Service) ListJobs(ctx context.Context) ([]Status, error) {
	now := time.Now().UTC()
	jobs := s.registry.List()
	out := make([]Status, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, StatusOf(j, now))
	}
	return out, nil
}

// Pause marks a running job paused. The run loop stops at the next batch
// boundary; a batch already in flight still commits.
func (s *Service) Pause(ctx context.Context, jobID string) error {
	e, err := s.registry.entry(jobID)
	if err != nil {
		return err
	}
	e.control.Lock()
	defer e.control.Unlock()

	if _, err := s.registry.transition(ctx, e, core.JobStatePaused); err != nil {
		return err
	}
	if h := e.currentRun(); h != nil {
		h.stop()
	}
	s.logger.Info("job paused", "job", jobID)
	return nil
}

// Resume restarts a paused job from its last committed checkpoint. It waits
// for the previous run loop of the job to exit first.
func (s *Service) Resume(ctx context.Context, jobID string) error {
	if s.isShutdown() {
		return ErrShutdown
	}
	e, err := s.registry.entry(jobID)
	if err != nil {
		return err
	}
	e.control.Lock()
	defer e.control.Unlock()

	if job := e.snapshot(); job.State != core.JobStatePaused {
		return fmt.Errorf("%w: job %s is %s, cannot resume", ErrInvalidState, jobID, job.State)
	}
	if h := e.currentRun(); h != nil {
		if err := h.wait(ctx); err != nil {
			return err
		}
	}
	if _, err := s.registry.transition(ctx, e, core.JobStateRunning); err != nil {
		return err
	}
	s.logger.Info("job resumed", "job", jobID)
	return s.launch(e)
}

// Cancel ends a running or paused job. In-flight work is abandoned and the
// last checkpoint is kept. Cancelling a cancelled job is a no-op.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	e, err := s.registry.entry(jobID)
	if err != nil {
		return err
	}
	e.control.Lock()
	defer e.control.Unlock()

	if e.snapshot().State == core.JobStateCancelled {
		return nil
	}
	if _, err := s.registry.transition(ctx, e, core.JobStateCancelled); err != nil {
		return err
	}
	if h := e.currentRun(); h != nil {
		h.abort()
	}
	s.logger.Info("job cancelled", "job", jobID)
	return nil
}

// Resubmit starts a new job continuing a failed one from its last
// committed checkpoint. Cursor and counters are carried over.
func (s *Service) Resubmit(ctx context.Context, failedJobID string) (string, error) {
	if s.isShutdown() {
		return "", ErrShutdown
	}
	old, err := s.registry.Get(failedJobID)
	if err != nil {
		return "", err
	}
	if old.State != core.JobStateFailed {
		return "", fmt.Errorf("%w: job %s is %s, only failed jobs can be resubmitted", ErrInvalidState, failedJobID, old.State)
	}
	cp, err := s.registry.LoadCheckpoint(ctx, failedJobID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	job := &core.Job{
		ID:           uuid.NewString(),
		Source:       old.Source,
		SubjectAreas: old.SubjectAreas,
		State:        core.JobStatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
		ResumedFrom:  failedJobID,
	}
	if cp != nil {
		job.Cursor = slices.Clone(cp.Cursor)
		job.Counters = cp.Counters
		err := s.stores.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
			JobID:     job.ID,
			Cursor:    slices.Clone(cp.Cursor),
			Counters:  cp.Counters,
			Exhausted: cp.Exhausted,
		})
		if err != nil {
			return "", err
		}
	}

	e, err := s.registry.create(ctx, job)
	if err != nil {
		return "", err
	}
	s.logger.Info("job resubmitted", "job", job.ID, "resumed_from", failedJobID)
	if err := s.start(ctx, e); err != nil {
		return job.ID, err
	}
	return job.ID, nil
}

// Wait blocks until the job's current run loop exits.
func (s *Service) Wait(ctx context.Context, jobID string) error {
	e, err := s.registry.entry(jobID)
	if err != nil {
		return err
	}
	if h := e.currentRun(); h != nil {
		return h.wait(ctx)
	}
	return nil
}

// Recover registers persisted jobs unknown to this service. Running jobs
// resume from their checkpoint and pending jobs start. Paused, completed,
// cancelled and failed jobs are registered without running. Returns the
// number of jobs set running.
func (s *Service) Recover(ctx context.Context) (int, error) {
	jobs, err := s.stores.Jobs.ListJobs(ctx)
	if err != nil {
		return 0, err
	}

	running := 0
	for _, job := range jobs {
		if _, err := s.registry.entry(job.ID); err == nil {
			continue
		}
		e := s.registry.register(job)
		switch job.State {
		case core.JobStateRunning:
			e.control.Lock()
			err = s.launch(e)
			e.control.Unlock()
		case core.JobStatePending:
			err = s.start(ctx, e)
		default:
			continue
		}
		if err != nil {
			return running, err
		}
		running++
		s.logger.Info("recovered job", "job", job.ID, "state", job.State, "sequence", job.Sequence)
	}
	return running, nil
}

// abortGrace bounds the wait for aborted run loops once Shutdown's context
// has ended.
const abortGrace = 10 * time.Second

// Shutdown stops every run loop at its next batch boundary without
// changing job states, so a later Recover continues them. It waits for the
// loops to exit. If ctx ends first, in-flight batches are abandoned at their
// last checkpoint and Shutdown waits up to abortGrace for the loops before
// returning ctx's error.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	for _, e := range s.registry.entriesSnapshot() {
		if h := e.currentRun(); h != nil {
			h.stop()
		}
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.logger.Warn("shutdown deadline reached, abandoning in-flight batches")
	for _, e := range s.registry.entriesSnapshot() {
		if h := e.currentRun(); h != nil {
			h.abort()
		}
	}
	select {
	case <-done:
	case <-time.After(abortGrace):
		s.logger.Error("run loops still active after abort", "grace", abortGrace)
	}
	return ctx.Err()
}

func (s *Service) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// start moves a pending job to running and launches it.
func (s *Service) start(ctx context.Context, e *jobEntry) error {
	e.control.Lock()
	defer e.control.Unlock()
	if _, err := s.registry.transition(ctx, e, core.JobStateRunning); err != nil {
		return err
	}
	return s.launch(e)
}

// launch starts a run loop. The caller holds e.control.
func (s *Service) launch(e *jobEntry) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrShutdown
	}
	s.runs.Add(1)
	s.mu.Unlock()

	stopCtx, stop := context.WithCancel(context.Background())
	workCtx, cancelWork := context.WithCancel(context.Background())
	h := &runHandle{
		stop: stop,
		abort: func() {
			stop()
			cancelWork()
		},
		done: make(chan struct{}),
	}
	job := e.snapshot()
	c := &controller{
		svc:     s,
		entry:   e,
		jobID:   job.ID,
		stopCtx: stopCtx,
		workCtx: workCtx,
		logger:  s.cfg.logger.With("component", "controller", "job", job.ID),
	}
	e.setRun(h)

	go func() {
		defer s.runs.Done()
		defer close(h.done)
		defer h.abort()
		c.run()
	}()
	return nil
}
