package quality

import (
	"context"
	"strings"

	"github.com/poiesic/medingest/core"
)

var _ Scorer = (*MetadataScorer)(nil)

// Weights of the metadata heuristic. They sum to 1.
const (
	weightTitle    = 0.15
	weightAbstract = 0.35
	weightJournal  = 0.10
	weightDOI      = 0.10
	weightAuthors  = 0.10
	weightMeSH     = 0.10
	weightDesign   = 0.10

	// Abstracts at least this long earn the full abstract weight.
	fullAbstractChars = 1000
)

// strongDesigns are publication types that earn the study design bonus.
var strongDesigns = []string{
	"systematic review",
	"meta-analysis",
	"randomized controlled trial",
	"clinical trial",
	"review",
	"practice guideline",
}

// MetadataScorer rates records by how complete their metadata is.
type MetadataScorer struct{}

// NewMetadataScorer creates a metadata heuristic scorer.
func NewMetadataScorer() *MetadataScorer {
	return &MetadataScorer{}
}

// Score returns ErrUnscoreable when both title and abstract are blank.
func (MetadataScorer) Score(ctx context.Context, r *core.Record) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	title := strings.TrimSpace(r.Title)
	abstract := strings.TrimSpace(r.Abstract)
	if title == "" && abstract == "" {
		return 0, ErrUnscoreable
	}

	var score float64
	if title != "" {
		score += weightTitle
	}
	score += weightAbstract * min(float64(len(abstract))/fullAbstractChars, 1)
	if strings.TrimSpace(r.Journal) != "" {
		score += weightJournal
	}
	if strings.TrimSpace(r.DOI) != "" {
		score += weightDOI
	}
	if len(r.Authors) > 0 {
		score += weightAuthors
	}
	if len(r.MeSHTerms) > 0 {
		score += weightMeSH
	}
	if isStrongDesign(r.PublicationType) {
		score += weightDesign
	}
	return min(score, 1), nil
}

func isStrongDesign(pubType string) bool {
	pt := strings.ToLower(pubType)
	for _, d := range strongDesigns {
		if strings.Contains(pt, d) {
			return true
		}
	}
	return false
}
