// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"slices"
	"time"
)

// JobState is the lifecycle state of an ingestion job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStatePaused    JobState = "paused"
	JobStateCompleted JobState = "completed"
	JobStateCancelled JobState = "cancelled"
	JobStateFailed    JobState = "failed"
)

// transitions lists the states reachable from each non-terminal state.
var transitions = map[JobState][]JobState{
	JobStatePending: {JobStateRunning},
	JobStateRunning: {JobStatePaused, JobStateCompleted, JobStateCancelled, JobStateFailed},
	JobStatePaused:  {JobStateRunning, JobStateCancelled},
}

// IsTerminal reports whether no transition leaves the state.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateCancelled || s == JobStateFailed
}

// IsValid reports whether s is a known state.
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStatePaused,
		JobStateCompleted, JobStateCancelled, JobStateFailed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to JobState) bool {
	return slices.Contains(transitions[from], to)
}

// SourceConfig selects and parameterizes the source adapter of a job.
type SourceConfig struct {
	// Kind names the adapter ("pubmed", "file").
	Kind string `json:"kind"`

	// Name is an optional human label for the job.
	Name string `json:"name,omitempty"`

	// Query overrides the per-subject queries when set.
	Query string `json:"query,omitempty"`

	// SubjectAreas drive per-area queries for sources that support them.
	SubjectAreas []string `json:"subject_areas,omitempty"`

	// MaxDocuments caps the records fetched per subject area (0 = source default).
	MaxDocuments int `json:"max_documents,omitempty"`

	DateFrom time.Time `json:"date_from,omitzero"`
	DateTo   time.Time `json:"date_to,omitzero"`

	// QualityThreshold rejects records scoring below it. 0 accepts everything.
	QualityThreshold float64 `json:"quality_threshold,omitempty"`

	// Path is the input file for file-backed sources.
	Path string `json:"path,omitempty"`

	// Params carries adapter-specific settings.
	Params map[string]string `json:"params,omitempty"`
}

// JobError is the structured form of a job failure.
type JobError struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
	At      time.Time `json:"at"`
}

// MaxRecentErrors bounds Job.RecentErrors.
const MaxRecentErrors = 20

// Job is an ingestion job and its progress.
type Job struct {
	ID           string       `json:"id"`
	Source       SourceConfig `json:"source"`
	SubjectAreas []string     `json:"subject_areas,omitempty"`
	State        JobState     `json:"state"`
	Cursor       Cursor       `json:"cursor,omitempty"`
	Sequence     uint64       `json:"sequence"`
	Counters     Counters     `json:"counters"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    time.Time    `json:"started_at,omitzero"`
	UpdatedAt    time.Time    `json:"updated_at"`
	EndedAt      time.Time    `json:"ended_at,omitzero"`
	LastError    *JobError    `json:"last_error,omitempty"`
	RecentErrors []JobError   `json:"recent_errors,omitempty"`
	ResumedFrom  string       `json:"resumed_from,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.SubjectAreas = slices.Clone(j.SubjectAreas)
	c.Source.SubjectAreas = slices.Clone(j.Source.SubjectAreas)
	c.Cursor = slices.Clone(j.Cursor)
	c.RecentErrors = slices.Clone(j.RecentErrors)
	if j.LastError != nil {
		e := *j.LastError
		c.LastError = &e
	}
	if j.Source.Params != nil {
		c.Source.Params = make(map[string]string, len(j.Source.Params))
		for k, v := range j.Source.Params {
			c.Source.Params[k] = v
		}
	}
	return &c
}

// AddSubjectAreas merges names into the target set, keeping order of first sight.
func (j *Job) AddSubjectAreas(names ...string) {
	for _, n := range names {
		if n != "" && !slices.Contains(j.SubjectAreas, n) {
			j.SubjectAreas = append(j.SubjectAreas, n)
		}
	}
}

// RecordError sets the last error and appends it to the bounded recent list.
func (j *Job) RecordError(e JobError) {
	j.LastError = &e
	j.RecentErrors = append(j.RecentErrors, e)
	if len(j.RecentErrors) > MaxRecentErrors {
		j.RecentErrors = j.RecentErrors[len(j.RecentErrors)-MaxRecentErrors:]
	}
}
