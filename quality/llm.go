package quality

import (
	"context"

	"github.com/poiesic/medingest/ai"
	"github.com/poiesic/medingest/core"
)

var _ Scorer = (*LLMScorer)(nil)

// LLMScorer rates records with an ai.QualityAssessor.
type LLMScorer struct {
	assessor ai.QualityAssessor
}

// NewLLMScorer creates a scorer backed by assessor.
func NewLLMScorer(assessor ai.QualityAssessor) *LLMScorer {
	return &LLMScorer{assessor: assessor}
}

// Score returns the assessor's overall score.
func (s *LLMScorer) Score(ctx context.Context, r *core.Record) (float64, error) {
	if r.Title == "" && r.Abstract == "" {
		return 0, ErrUnscoreable
	}
	a, err := s.assessor.AssessQuality(ctx, ai.ArticleFromRecord(r))
	if err != nil {
		return 0, err
	}
	return a.Overall, nil
}
