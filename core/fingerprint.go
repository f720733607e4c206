package core

import (
	"fmt"
	"strings"
	"unicode"
)

// Fingerprint is the deterministic duplicate-detection key of a record.
type Fingerprint string

// FingerprintOf derives the primary fingerprint of a record, the first of
// its IdentityKeys. Returns "" when the record carries nothing to fingerprint.
func FingerprintOf(r *Record) Fingerprint {
	keys := IdentityKeys(r)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// IdentityKeys derives every duplicate-detection key of a record, in
// priority order:
//   - "pmid:<id>" for PubMed records
//   - "doi:<doi>" when a DOI is present
//   - "title:<hash>" over the normalized title
//   - "<source>:<external id>" when none of the above exist
//
// Two records sharing any key are the same work.
func IdentityKeys(r *Record) []Fingerprint {
	if r == nil {
		return nil
	}
	var keys []Fingerprint
	if r.Source == "pubmed" && strings.TrimSpace(r.ExternalID) != "" {
		keys = append(keys, Fingerprint("pmid:"+strings.TrimSpace(r.ExternalID)))
	}
	if doi := strings.ToLower(strings.TrimSpace(r.DOI)); doi != "" {
		doi = strings.TrimPrefix(doi, "https://doi.org/")
		keys = append(keys, Fingerprint("doi:"+doi))
	}
	if title := NormalizeTitle(r.Title); title != "" {
		keys = append(keys, Fingerprint(fmt.Sprintf("title:%016x", uint64(IDFromContent(title)))))
	}
	if len(keys) == 0 {
		if id := strings.TrimSpace(r.ExternalID); id != "" && r.Source != "" {
			keys = append(keys, Fingerprint(r.Source+":"+id))
		}
	}
	return keys
}

// NormalizeTitle lower-cases a title, drops punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// NormalizePartitionName maps a subject name to its partition key.
// Only letters, digits, '-' and '_' survive; whitespace runs become '_'.
func NormalizePartitionName(name string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(name)), "_")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return r
		}
		return -1
	}, joined)
}
