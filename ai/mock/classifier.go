package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/medingest/ai"
)

var _ ai.SubjectClassifier = (*MockSubjectClassifier)(nil)

// MockSubjectClassifier is a test double for ai.SubjectClassifier.
// It is safe for concurrent use as long as ClassifySubjectsFunc is.
type MockSubjectClassifier struct {
	// ClassifySubjectsFunc is called by ClassifySubjects if set.
	// If nil, areas whose name appears in the title or MeSH terms are returned.
	ClassifySubjectsFunc func(ctx context.Context, article ai.ArticleText) ([]ai.SubjectLabel, error)

	callCount atomic.Int64
}

// NewMockSubjectClassifier creates a mock classifier with default behavior.
func NewMockSubjectClassifier() *MockSubjectClassifier {
	return &MockSubjectClassifier{}
}

// WithClassifySubjectsFunc sets the classification behavior.
func (m *MockSubjectClassifier) WithClassifySubjectsFunc(fn func(ctx context.Context, article ai.ArticleText) ([]ai.SubjectLabel, error)) *MockSubjectClassifier {
	m.ClassifySubjectsFunc = fn
	return m
}

// ClassifySubjects returns labels from ClassifySubjectsFunc or the default matcher.
func (m *MockSubjectClassifier) ClassifySubjects(ctx context.Context, article ai.ArticleText) ([]ai.SubjectLabel, error) {
	m.callCount.Add(1)

	if m.ClassifySubjectsFunc != nil {
		return m.ClassifySubjectsFunc(ctx, article)
	}

	text := strings.ToLower(article.Title + " " + strings.Join(article.MeSHTerms, " "))
	labels := []ai.SubjectLabel{}
	for _, area := range ai.SubjectAreas {
		if strings.Contains(text, area) {
			labels = append(labels, ai.SubjectLabel{Name: area, Confidence: 0.9})
		}
	}
	return labels, nil
}

// CallCount returns the number of times ClassifySubjects was called.
func (m *MockSubjectClassifier) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count.
func (m *MockSubjectClassifier) Reset() {
	m.callCount.Store(0)
}
