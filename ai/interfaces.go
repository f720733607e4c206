package ai

import "context"

// SubjectClassifier assigns medical subject areas to an article.
// Implementations must be thread-safe for concurrent use.
type SubjectClassifier interface {
	// ClassifySubjects returns the subject areas the article belongs to,
	// most confident first. Returns an empty slice if none apply.
	ClassifySubjects(ctx context.Context, article ArticleText) ([]SubjectLabel, error)
}

// QualityAssessor rates the quality of an article from its metadata.
// Implementations must be thread-safe for concurrent use.
type QualityAssessor interface {
	// AssessQuality returns scores in [0, 1].
	AssessQuality(ctx context.Context, article ArticleText) (*QualityAssessment, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// SubjectClassifier returns the classification service.
	SubjectClassifier() SubjectClassifier

	// QualityAssessor returns the quality assessment service.
	QualityAssessor() QualityAssessor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
