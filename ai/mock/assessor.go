package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/medingest/ai"
)

var _ ai.QualityAssessor = (*MockQualityAssessor)(nil)

// MockQualityAssessor is a test double for ai.QualityAssessor.
type MockQualityAssessor struct {
	// AssessQualityFunc is called by AssessQuality if set.
	// If nil, every article scores Score on all aspects.
	AssessQualityFunc func(ctx context.Context, article ai.ArticleText) (*ai.QualityAssessment, error)

	// Score is the default score. Zero means 0.8.
	Score float64

	callCount atomic.Int64
}

// NewMockQualityAssessor creates a mock assessor with default behavior.
func NewMockQualityAssessor() *MockQualityAssessor {
	return &MockQualityAssessor{}
}

// WithAssessQualityFunc sets the assessment behavior.
func (m *MockQualityAssessor) WithAssessQualityFunc(fn func(ctx context.Context, article ai.ArticleText) (*ai.QualityAssessment, error)) *MockQualityAssessor {
	m.AssessQualityFunc = fn
	return m
}

// AssessQuality returns the injected or default assessment.
func (m *MockQualityAssessor) AssessQuality(ctx context.Context, article ai.ArticleText) (*ai.QualityAssessment, error) {
	m.callCount.Add(1)

	if m.AssessQualityFunc != nil {
		return m.AssessQualityFunc(ctx, article)
	}
	score := m.Score
	if score == 0 {
		score = 0.8
	}
	return &ai.QualityAssessment{
		Overall:   score,
		Content:   score,
		Writing:   score,
		Citation:  score,
		Rationale: "mock",
	}, nil
}

// CallCount returns the number of times AssessQuality was called.
func (m *MockQualityAssessor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count.
func (m *MockQualityAssessor) Reset() {
	m.callCount.Store(0)
}
