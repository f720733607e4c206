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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidSourceConfig indicates a SourceConfig failed validation.
	ErrInvalidSourceConfig = errors.New("invalid source config")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrMissingIdentity indicates a record has nothing to fingerprint.
	ErrMissingIdentity = errors.New("record has no identifier, DOI or title")

	// ErrInvalidTimestamp indicates a timestamp too far in the future.
	ErrInvalidTimestamp = errors.New("timestamp is too far in the future")

	// ErrEmptySourceKind indicates the source Kind field is empty.
	ErrEmptySourceKind = errors.New("source kind cannot be empty")

	// ErrInvalidDateRange indicates DateFrom is after DateTo.
	ErrInvalidDateRange = errors.New("date range start is after its end")

	// ErrInvalidThreshold indicates a quality threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("quality threshold must be between 0 and 1")
)
