package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateRecord(t *testing.T) {
	validTime := time.Now().Add(-24 * time.Hour)
	forthcoming := time.Now().AddDate(0, 2, 0)
	farFuture := time.Now().AddDate(5, 0, 0)

	tests := []struct {
		name    string
		record  *Record
		wantErr error
	}{
		{
			name: "valid record",
			record: &Record{
				Source:      "pubmed",
				ExternalID:  "100",
				Title:       "Statins in primary prevention",
				PublishedAt: validTime,
			},
			wantErr: nil,
		},
		{
			name: "valid record without date",
			record: &Record{
				Source: "file",
				Title:  "Untitled cohort study",
			},
			wantErr: nil,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidRecord,
		},
		{
			name: "blank title",
			record: &Record{
				Source:     "pubmed",
				ExternalID: "100",
				Title:      " ... ",
			},
			wantErr: ErrEmptyTitle,
		},
		{
			name: "forthcoming issue date",
			record: &Record{
				Source:      "pubmed",
				ExternalID:  "100",
				Title:       "Epub ahead of print",
				PublishedAt: forthcoming,
			},
		},
		{
			name: "publication date years ahead",
			record: &Record{
				Source:      "pubmed",
				ExternalID:  "100",
				Title:       "From the future",
				PublishedAt: farFuture,
			},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRecord() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRecord() error should wrap ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestValidateSourceConfig(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		cfg     *SourceConfig
		wantErr error
	}{
		{
			name:    "valid config",
			cfg:     &SourceConfig{Kind: "pubmed", SubjectAreas: []string{"cardiology"}, QualityThreshold: 0.5},
			wantErr: nil,
		},
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: ErrInvalidSourceConfig,
		},
		{
			name:    "missing kind",
			cfg:     &SourceConfig{},
			wantErr: ErrEmptySourceKind,
		},
		{
			name:    "inverted date range",
			cfg:     &SourceConfig{Kind: "pubmed", DateFrom: now, DateTo: now.Add(-time.Hour)},
			wantErr: ErrInvalidDateRange,
		},
		{
			name:    "threshold above one",
			cfg:     &SourceConfig{Kind: "pubmed", QualityThreshold: 1.5},
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "negative max documents",
			cfg:     &SourceConfig{Kind: "pubmed", MaxDocuments: -1},
			wantErr: ErrInvalidSourceConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceConfig(tt.cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSourceConfig() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSourceConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidTimestamp(t *testing.T) {
	if !IsValidTimestamp(time.Now().Add(-time.Minute)) {
		t.Error("past timestamp should be valid")
	}
	if !IsValidTimestamp(time.Now().AddDate(0, 2, 0)) {
		t.Error("timestamp two months ahead should be valid")
	}
	if IsValidTimestamp(time.Now().Add(MaxPublicationLead + time.Hour)) {
		t.Error("timestamp beyond the publication lead should be invalid")
	}
}
