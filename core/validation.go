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
	"fmt"
	"time"
)

// ValidateRecord validates a fetched Record according to domain rules.
//
// Validation rules:
//   - Title must not be blank
//   - The record must carry an external ID, DOI or title to fingerprint
//   - PublishedAt, when set, must not be more than MaxPublicationLead ahead;
//     forthcoming issue dates of ahead-of-print articles are accepted
//
// NOT validated (optional metadata):
//   - Abstract, Journal, Authors, MeSHTerms, Keywords
//   - Fingerprint (derived by the pipeline)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if NormalizeTitle(record.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTitle)
	}

	if FingerprintOf(record) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingIdentity)
	}

	if !record.PublishedAt.IsZero() && !IsValidTimestamp(record.PublishedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateSourceConfig validates a SourceConfig according to domain rules.
//
// Validation rules:
//   - Kind must not be empty
//   - DateFrom must not be after DateTo when both are set
//   - QualityThreshold must be within [0, 1]
//   - MaxDocuments must not be negative
func ValidateSourceConfig(cfg *SourceConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidSourceConfig)
	}

	if cfg.Kind == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSourceConfig, ErrEmptySourceKind)
	}

	if !cfg.DateFrom.IsZero() && !cfg.DateTo.IsZero() && cfg.DateFrom.After(cfg.DateTo) {
		return fmt.Errorf("%w: %w", ErrInvalidSourceConfig, ErrInvalidDateRange)
	}

	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		return fmt.Errorf("%w: %w", ErrInvalidSourceConfig, ErrInvalidThreshold)
	}

	if cfg.MaxDocuments < 0 {
		return fmt.Errorf("%w: max documents %d", ErrInvalidSourceConfig, cfg.MaxDocuments)
	}

	return nil
}

// MaxPublicationLead bounds how far ahead a publication date may be.
const MaxPublicationLead = 2 * 365 * 24 * time.Hour

// IsValidTimestamp reports whether ts is no later than MaxPublicationLead
// from now.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now().Add(MaxPublicationLead))
}
