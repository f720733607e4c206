package core

import (
	"slices"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "pmid:123456",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "title:effects of early mobilization after cardiac surgery in elderly patients",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("pmid:1")
	id2 := IDFromContent("pmid:2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestFingerprintOf(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
		want   Fingerprint
	}{
		{
			name:   "pubmed id wins",
			record: &Record{Source: "pubmed", ExternalID: " 3141 ", DOI: "10.1/x", Title: "T"},
			want:   "pmid:3141",
		},
		{
			name:   "doi lower-cased without resolver prefix",
			record: &Record{Source: "file", ExternalID: "a", DOI: "https://doi.org/10.1000/ABC"},
			want:   "doi:10.1000/abc",
		},
		{
			name:   "external id as last resort",
			record: &Record{Source: "file", ExternalID: "row-7"},
			want:   "file:row-7",
		},
		{
			name:   "nothing to fingerprint",
			record: &Record{Source: "file"},
			want:   "",
		},
		{
			name:   "nil record",
			record: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FingerprintOf(tt.record); got != tt.want {
				t.Errorf("FingerprintOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityKeys(t *testing.T) {
	rec := &Record{Source: "pubmed", ExternalID: "12345", DOI: "10.1000/XYZ", Title: "Statins after stroke"}
	keys := IdentityKeys(rec)

	if len(keys) != 3 {
		t.Fatalf("IdentityKeys() = %v, want pmid, doi and title keys", keys)
	}
	if keys[0] != "pmid:12345" || keys[1] != "doi:10.1000/xyz" {
		t.Errorf("IdentityKeys() = %v, want pmid then doi first", keys)
	}
	if FingerprintOf(rec) != keys[0] {
		t.Errorf("FingerprintOf() = %q, want the first identity key %q", FingerprintOf(rec), keys[0])
	}

	replay := &Record{Source: "file", ExternalID: "row-7", DOI: "https://doi.org/10.1000/xyz", Title: "Statins after stroke."}
	shared := 0
	for _, k := range IdentityKeys(replay) {
		if slices.Contains(keys, k) {
			shared++
		}
	}
	if shared != 2 {
		t.Errorf("replayed record shares %d keys with the PubMed record, want doi and title", shared)
	}
}

func TestFingerprintOf_TitleNormalization(t *testing.T) {
	a := FingerprintOf(&Record{Source: "file", Title: "Aspirin and  Stroke: A Review."})
	b := FingerprintOf(&Record{Source: "file", Title: "aspirin and stroke a review"})

	if a == "" || a != b {
		t.Errorf("titles differing only in case and punctuation should share a fingerprint: %q vs %q", a, b)
	}
}

func TestNormalizePartitionName(t *testing.T) {
	tests := map[string]string{
		"Cardiology":        "cardiology",
		"  Mental   Health": "mental_health",
		"":                  "",
	}
	for in, want := range tests {
		if got := NormalizePartitionName(in); got != want {
			t.Errorf("NormalizePartitionName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCounters_Add(t *testing.T) {
	a := Counters{Fetched: 10, Written: 7, Duplicates: 2, Failed: 1}
	b := Counters{Fetched: 5, Written: 5, Warnings: 1}

	got := a.Add(b)
	want := Counters{Fetched: 15, Written: 12, Duplicates: 2, Failed: 1, Warnings: 1}
	if got != want {
		t.Errorf("Add() = %+v, want %+v", got, want)
	}
	if got.Processed() != 15 {
		t.Errorf("Processed() = %d, want 15", got.Processed())
	}
}
