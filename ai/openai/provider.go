// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"log/slog"

	"github.com/poiesic/medingest/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var _ ai.AIProvider = (*Provider)(nil)

// Provider implements ai.AIProvider using OpenAI-compatible services.
type Provider struct {
	config     *ai.Config
	classifier *SubjectClassifier
	assessor   *QualityAssessor
	logger     *slog.Logger
}

// NewProvider creates a provider with both services.
// The config is validated and normalized before use.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	classifier, err := newSubjectClassifier(config)
	if err != nil {
		return nil, err
	}
	assessor, err := newQualityAssessor(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:     config,
		classifier: classifier,
		assessor:   assessor,
		logger:     slog.Default().With("component", "openai-provider"),
	}, nil
}

// SubjectClassifier returns the classification service.
func (p *Provider) SubjectClassifier() ai.SubjectClassifier {
	return p.classifier
}

// QualityAssessor returns the assessment service.
func (p *Provider) QualityAssessor() ai.QualityAssessor {
	return p.assessor
}

// Close is a no-op; the underlying HTTP clients hold no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}

func newChatModel(config *ai.Config, model string) (llms.Model, error) {
	return openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(config.Token),
		openai.WithModel(model),
	)
}
