package ingestion

import (
	"time"

	"github.com/poiesic/medingest/core"
)

// Summary holds throughput figures derived from a job's counters.
type Summary struct {
	// SuccessRate is written / processed, in [0, 1].
	SuccessRate       float64 `json:"success_rate"`
	ProcessingMinutes float64 `json:"processing_minutes"`
	// RecordsPerMinute counts processed records.
	RecordsPerMinute float64 `json:"records_per_minute"`
}

// Summarize derives a Summary. Jobs that have not ended are measured up to now.
func Summarize(job *core.Job, now time.Time) Summary {
	var s Summary
	processed := job.Counters.Processed()
	if processed > 0 {
		s.SuccessRate = float64(job.Counters.Written) / float64(processed)
	}
	if job.StartedAt.IsZero() {
		return s
	}
	end := job.EndedAt
	if end.IsZero() {
		end = now
	}
	s.ProcessingMinutes = max(end.Sub(job.StartedAt).Minutes(), 0)
	if s.ProcessingMinutes > 0 {
		s.RecordsPerMinute = float64(processed) / s.ProcessingMinutes
	}
	return s
}

// Status is the externally visible state of a job.
type Status struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	State        core.JobState     `json:"state"`
	Source       core.SourceConfig `json:"source"`
	SubjectAreas []string          `json:"subject_areas,omitempty"`
	Counters     core.Counters     `json:"counters"`
	Sequence     uint64            `json:"sequence"`
	LastError    *core.JobError    `json:"last_error,omitempty"`
	RecentErrors []core.JobError   `json:"recent_errors,omitempty"`
	ResumedFrom  string            `json:"resumed_from,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    time.Time         `json:"started_at,omitzero"`
	UpdatedAt    time.Time         `json:"updated_at"`
	EndedAt      time.Time         `json:"ended_at,omitzero"`
	Summary      Summary           `json:"summary"`
}

// StatusOf builds the status of a job snapshot.
func StatusOf(job *core.Job, now time.Time) Status {
	return Status{
		ID:           job.ID,
		Name:         job.Source.Name,
		State:        job.State,
		Source:       job.Source,
		SubjectAreas: job.SubjectAreas,
		Counters:     job.Counters,
		Sequence:     job.Sequence,
		LastError:    job.LastError,
		RecentErrors: job.RecentErrors,
		ResumedFrom:  job.ResumedFrom,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		UpdatedAt:    job.UpdatedAt,
		EndedAt:      job.EndedAt,
		Summary:      Summarize(job, now),
	}
}
