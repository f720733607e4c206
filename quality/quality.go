// Package quality scores fetched records in [0, 1].
//
// Scorers may fail. Safe wraps any Scorer so that ingestion never does:
// failures and out-of-range values are replaced by a default score and the
// result is flagged as degraded.
package quality

import (
	"context"
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/medingest/core"
)

// DefaultScore is assigned when scoring fails.
const DefaultScore = 0.7

// ErrUnscoreable is returned for records with neither title nor abstract.
var ErrUnscoreable = errors.New("record has no scoreable content")

// ErrOutOfRange is returned by Safe when a scorer yields NaN or a value outside [0, 1].
var ErrOutOfRange = errors.New("score out of range")

// Scorer rates a record. Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, record *core.Record) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, record *core.Record) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, record *core.Record) (float64, error) {
	return f(ctx, record)
}

// Result is the outcome of a Safe score.
type Result struct {
	Score    float64
	Degraded bool
	Err      error // Cause of degradation, marked with core.ErrScoring
}

// Safe wraps a Scorer and never fails.
type Safe struct {
	scorer       Scorer
	defaultScore float64
	logger       *slog.Logger
}

// SafeOption configures a Safe scorer.
type SafeOption func(*Safe)

// WithDefaultScore sets the score used when scoring fails.
func WithDefaultScore(score float64) SafeOption {
	return func(s *Safe) {
		s.defaultScore = score
	}
}

// WithLogger sets the logger for degradation warnings.
func WithLogger(logger *slog.Logger) SafeOption {
	return func(s *Safe) {
		s.logger = logger.With("component", "quality")
	}
}

// NewSafe wraps scorer.
func NewSafe(scorer Scorer, opts ...SafeOption) *Safe {
	s := &Safe{
		scorer:       scorer,
		defaultScore: DefaultScore,
		logger:       slog.Default().With("component", "quality"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultScore returns the score assigned on failure.
func (s *Safe) DefaultScore() float64 {
	return s.defaultScore
}

// Score rates record, degrading to the default score on any failure.
func (s *Safe) Score(ctx context.Context, record *core.Record) Result {
	score, err := s.scorer.Score(ctx, record)
	if err == nil && (math.IsNaN(score) || score < 0 || score > 1) {
		err = errors.Wrapf(ErrOutOfRange, "got %v", score)
	}
	if err != nil {
		err = errors.Mark(err, core.ErrScoring)
		s.logger.Warn("scoring failed, using default score",
			"external_id", record.ExternalID,
			"source", record.Source,
			"default", s.defaultScore,
			"err", err)
		return Result{Score: s.defaultScore, Degraded: true, Err: err}
	}
	return Result{Score: score}
}
