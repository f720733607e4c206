package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/medingest/ai"
	"github.com/tmc/langchaingo/llms"
)

var _ ai.SubjectClassifier = (*SubjectClassifier)(nil)

// SubjectClassifier implements ai.SubjectClassifier using a chat model.
type SubjectClassifier struct {
	client        llms.Model
	systemPrompt  string
	minConfidence float64
	maxAbstract   int
	logger        *slog.Logger
}

type classificationResponse struct {
	Subjects []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"subjects"`
}

// NewSubjectClassifier creates a classifier with the given configuration.
func NewSubjectClassifier(config *ai.Config) (ai.SubjectClassifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newSubjectClassifier(config)
}

func newSubjectClassifier(config *ai.Config) (*SubjectClassifier, error) {
	client, err := newChatModel(config, config.ClassifierModel)
	if err != nil {
		return nil, err
	}
	return newSubjectClassifierWithModel(client, config), nil
}

func newSubjectClassifierWithModel(client llms.Model, config *ai.Config) *SubjectClassifier {
	return &SubjectClassifier{
		client:        client,
		systemPrompt:  classificationSystemPrompt(),
		minConfidence: config.MinConfidence,
		maxAbstract:   config.MaxAbstractChars,
		logger:        slog.Default().With("component", "openai-classifier"),
	}
}

// ClassifySubjects asks the model for subject areas. Labels below the
// configured confidence are dropped and names are lowercased and deduplicated.
func (c *SubjectClassifier) ClassifySubjects(ctx context.Context, article ai.ArticleText) ([]ai.SubjectLabel, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(c.systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(articlePrompt(article, c.maxAbstract))},
		},
	}

	var resp classificationResponse
	if err := generateJSON(ctx, c.client, c.logger, messages, &resp); err != nil {
		return nil, err
	}

	labels := make([]ai.SubjectLabel, 0, len(resp.Subjects))
	seen := make(map[string]struct{}, len(resp.Subjects))
	for _, s := range resp.Subjects {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			continue
		}
		conf := clamp01(s.Confidence)
		if conf < c.minConfidence {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		labels = append(labels, ai.SubjectLabel{Name: name, Confidence: conf})
	}
	return labels, nil
}
