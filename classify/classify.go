// Package classify assigns subject areas to records and maintains the set of
// subject partitions.
//
// Classifiers may fail or return nothing. Safe wraps any Classifier so that
// every record lands in at least one normalized partition, falling back to
// core.UnclassifiedPartition.
package classify

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/medingest/core"
)

// Classifier returns the subject areas of a record.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, record *core.Record) ([]string, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, record *core.Record) ([]string, error)

func (f ClassifierFunc) Classify(ctx context.Context, record *core.Record) ([]string, error) {
	return f(ctx, record)
}

// Result is the outcome of a Safe classification.
type Result struct {
	Subjects []string // Normalized, unique, never empty
	Degraded bool
	Err      error // Cause of degradation, marked with core.ErrClassification
}

// Safe wraps a Classifier and never fails.
type Safe struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewSafe wraps classifier.
func NewSafe(classifier Classifier, logger *slog.Logger) *Safe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Safe{
		classifier: classifier,
		logger:     logger.With("component", "classify"),
	}
}

// Classify returns normalized subjects for record. Errors route the record to
// the unclassified partition and mark the result degraded.
func (s *Safe) Classify(ctx context.Context, record *core.Record) Result {
	subjects, err := s.classifier.Classify(ctx, record)
	if err != nil {
		err = errors.Mark(err, core.ErrClassification)
		s.logger.Warn("classification failed, routing to unclassified",
			"external_id", record.ExternalID,
			"source", record.Source,
			"err", err)
		return Result{Subjects: []string{core.UnclassifiedPartition}, Degraded: true, Err: err}
	}

	normalized := Normalize(subjects)
	if len(normalized) == 0 {
		normalized = []string{core.UnclassifiedPartition}
	}
	return Result{Subjects: normalized}
}

// Normalize maps names to partition keys, dropping blanks and duplicates
// while keeping first-seen order.
func Normalize(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		key := core.NormalizePartitionName(n)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
