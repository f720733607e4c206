package core

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Failure markers. Components mark errors with errors.Mark so the job
// controller can classify them through any number of wrapping layers.
var (
	ErrTransientSource    = errors.New("transient source failure")
	ErrTransientWrite     = errors.New("transient write failure")
	ErrValidation         = errors.New("record validation failure")
	ErrScoring            = errors.New("quality scoring failure")
	ErrClassification     = errors.New("subject classification failure")
	ErrFatalConfiguration = errors.New("fatal configuration failure")
)

// FailureKind names the class of a failure for status reporting.
type FailureKind string

const (
	FailureTransientSource    FailureKind = "transient_source"
	FailureTransientWrite     FailureKind = "transient_write"
	FailureValidation         FailureKind = "validation"
	FailureScoring            FailureKind = "scoring"
	FailureClassification     FailureKind = "classification"
	FailureFatalConfiguration FailureKind = "fatal_configuration"
	FailureUnknown            FailureKind = "unknown"
)

// MarkTransientSource marks err as a retryable source failure.
func MarkTransientSource(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrTransientSource)
}

// MarkTransientWrite marks err as a retryable storage failure.
func MarkTransientWrite(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrTransientWrite)
}

// MarkFatal marks err as unrecoverable for the job, attaching an operator hint.
func MarkFatal(err error, hint string) error {
	if err == nil {
		return nil
	}
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return errors.Mark(err, ErrFatalConfiguration)
}

// ClassifyFailure returns the failure kind of err.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureUnknown
	case errors.Is(err, ErrFatalConfiguration):
		return FailureFatalConfiguration
	case errors.Is(err, ErrTransientSource):
		return FailureTransientSource
	case errors.Is(err, ErrTransientWrite):
		return FailureTransientWrite
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrScoring):
		return FailureScoring
	case errors.Is(err, ErrClassification):
		return FailureClassification
	}
	return FailureUnknown
}

// IsRetryable reports whether err should be retried at its call site.
func IsRetryable(err error) bool {
	k := ClassifyFailure(err)
	return k == FailureTransientSource || k == FailureTransientWrite
}

// NewJobError builds the structured job error for err.
func NewJobError(err error, at time.Time) JobError {
	return JobError{
		Kind:    string(ClassifyFailure(err)),
		Message: err.Error(),
		Hint:    errors.FlattenHints(err),
		At:      at,
	}
}
