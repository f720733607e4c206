package classify

import (
	"context"

	"github.com/poiesic/medingest/ai"
	"github.com/poiesic/medingest/core"
)

var _ Classifier = (*LLMClassifier)(nil)

// LLMClassifier assigns subjects with an ai.SubjectClassifier. The record's
// subject hint is appended when the model omits it.
type LLMClassifier struct {
	classifier ai.SubjectClassifier
}

// NewLLMClassifier creates a classifier backed by classifier.
func NewLLMClassifier(classifier ai.SubjectClassifier) *LLMClassifier {
	return &LLMClassifier{classifier: classifier}
}

func (c *LLMClassifier) Classify(ctx context.Context, r *core.Record) ([]string, error) {
	labels, err := c.classifier.ClassifySubjects(ctx, ai.ArticleFromRecord(r))
	if err != nil {
		return nil, err
	}
	subjects := make([]string, 0, len(labels)+1)
	for _, l := range labels {
		subjects = append(subjects, l.Name)
	}
	if r.SubjectHint != "" {
		subjects = append(subjects, r.SubjectHint)
	}
	return subjects, nil
}
