package ingestion

import (
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/medingest/classify"
	"github.com/poiesic/medingest/index"
	"github.com/poiesic/medingest/quality"
	"github.com/poiesic/medingest/retry"
)

// Defaults for Service settings.
const (
	DefaultBatchSize     = 100
	DefaultWorkers       = 4
	DefaultRecordTimeout = 30 * time.Second
	DefaultBatchTimeout  = 5 * time.Minute
	DefaultFetchTimeout  = time.Minute
	DefaultCommitTimeout = 30 * time.Second
)

type settings struct {
	batchSize     int
	workers       int
	recordTimeout time.Duration
	batchTimeout  time.Duration
	fetchTimeout  time.Duration
	commitTimeout time.Duration
	fetchPolicy   retry.Policy
	commitPolicy  retry.Policy
	scorer        quality.Scorer
	defaultScore  float64
	classifier    classify.Classifier
	notifier      index.Notifier
	mirror        StatusMirror
	logger        *slog.Logger
}

func defaultSettings() settings {
	return settings{
		batchSize:     DefaultBatchSize,
		workers:       DefaultWorkers,
		recordTimeout: DefaultRecordTimeout,
		batchTimeout:  DefaultBatchTimeout,
		fetchTimeout:  DefaultFetchTimeout,
		commitTimeout: DefaultCommitTimeout,
		fetchPolicy:   retry.DefaultPolicy(),
		commitPolicy:  retry.DefaultPolicy(),
		scorer:        quality.NewMetadataScorer(),
		defaultScore:  quality.DefaultScore,
		classifier:    classify.NewKeywordClassifier(nil),
		notifier:      index.Discard{},
		logger:        slog.Default(),
	}
}

// Option configures a Service.
type Option func(*settings) error

// WithBatchSize sets the number of records fetched and committed per batch.
func WithBatchSize(size int) Option {
	return func(s *settings) error {
		if size < 1 {
			return errors.New("batch size must be positive")
		}
		s.batchSize = size
		return nil
	}
}

// WithWorkers sets the per-job worker pool size.
// Values below 1 are raised to 1.
func WithWorkers(n int) Option {
	return func(s *settings) error {
		s.workers = max(n, 1)
		return nil
	}
}

// WithTimeouts sets the per-record, per-batch, per-fetch and per-commit
// timeouts. Zero leaves a timeout at its current value.
func WithTimeouts(record, batch, fetch, commit time.Duration) Option {
	return func(s *settings) error {
		if record > 0 {
			s.recordTimeout = record
		}
		if batch > 0 {
			s.batchTimeout = batch
		}
		if fetch > 0 {
			s.fetchTimeout = fetch
		}
		if commit > 0 {
			s.commitTimeout = commit
		}
		return nil
	}
}

// WithFetchRetry sets the retry policy for source fetches.
// Only errors marked transient source failures are retried.
func WithFetchRetry(p retry.Policy) Option {
	return func(s *settings) error {
		if p.MaxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		s.fetchPolicy = p
		return nil
	}
}

// WithCommitRetry sets the retry policy for batch commits.
// Only errors marked transient write failures are retried.
func WithCommitRetry(p retry.Policy) Option {
	return func(s *settings) error {
		if p.MaxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		s.commitPolicy = p
		return nil
	}
}

// WithScorer sets the quality scorer. Default is quality.MetadataScorer.
func WithScorer(scorer quality.Scorer) Option {
	return func(s *settings) error {
		if scorer != nil {
			s.scorer = scorer
		}
		return nil
	}
}

// WithDefaultScore sets the score assigned when scoring fails.
func WithDefaultScore(score float64) Option {
	return func(s *settings) error {
		if score < 0 || score > 1 {
			return errors.New("default score must be between 0 and 1")
		}
		s.defaultScore = score
		return nil
	}
}

// WithClassifier sets the subject classifier. Default is classify.KeywordClassifier.
func WithClassifier(classifier classify.Classifier) Option {
	return func(s *settings) error {
		if classifier != nil {
			s.classifier = classifier
		}
		return nil
	}
}

// WithNotifier sets the index notifier. Default discards signals.
func WithNotifier(n index.Notifier) Option {
	return func(s *settings) error {
		if n != nil {
			s.notifier = n
		}
		return nil
	}
}

// WithStatusMirror publishes every job update to m.
func WithStatusMirror(m StatusMirror) Option {
	return func(s *settings) error {
		s.mirror = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}
