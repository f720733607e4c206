package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/medingest/ai"
	"github.com/tmc/langchaingo/llms"
)

var _ ai.QualityAssessor = (*QualityAssessor)(nil)

// QualityAssessor implements ai.QualityAssessor using a chat model.
type QualityAssessor struct {
	client      llms.Model
	maxAbstract int
	logger      *slog.Logger
}

type assessmentResponse struct {
	Overall   float64 `json:"overall"`
	Content   float64 `json:"content"`
	Writing   float64 `json:"writing"`
	Citation  float64 `json:"citation"`
	Rationale string  `json:"rationale"`
}

// NewQualityAssessor creates an assessor with the given configuration.
func NewQualityAssessor(config *ai.Config) (ai.QualityAssessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newQualityAssessor(config)
}

func newQualityAssessor(config *ai.Config) (*QualityAssessor, error) {
	client, err := newChatModel(config, config.AssessorModel)
	if err != nil {
		return nil, err
	}
	return newQualityAssessorWithModel(client, config), nil
}

func newQualityAssessorWithModel(client llms.Model, config *ai.Config) *QualityAssessor {
	return &QualityAssessor{
		client:      client,
		maxAbstract: config.MaxAbstractChars,
		logger:      slog.Default().With("component", "openai-assessor"),
	}
}

// AssessQuality asks the model to rate the article. Scores outside [0, 1]
// are clamped.
func (a *QualityAssessor) AssessQuality(ctx context.Context, article ai.ArticleText) (*ai.QualityAssessment, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(assessmentSystemPrompt())},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(articlePrompt(article, a.maxAbstract))},
		},
	}

	var resp assessmentResponse
	if err := generateJSON(ctx, a.client, a.logger, messages, &resp); err != nil {
		return nil, err
	}
	return &ai.QualityAssessment{
		Overall:   clamp01(resp.Overall),
		Content:   clamp01(resp.Content),
		Writing:   clamp01(resp.Writing),
		Citation:  clamp01(resp.Citation),
		Rationale: resp.Rationale,
	}, nil
}
