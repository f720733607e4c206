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

package mock

import "github.com/poiesic/medingest/ai"

var _ ai.AIProvider = (*MockProvider)(nil)

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	classifier *MockSubjectClassifier
	assessor   *MockQualityAssessor
	closed     bool
}

// NewMockProvider creates a mock provider with default mock services.
// Use GetMockClassifier()/GetMockAssessor() for assertions.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithServices(NewMockSubjectClassifier(), NewMockQualityAssessor())
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(classifier *MockSubjectClassifier, assessor *MockQualityAssessor) *MockProvider {
	return &MockProvider{
		classifier: classifier,
		assessor:   assessor,
	}
}

// SubjectClassifier returns the mock classifier.
func (p *MockProvider) SubjectClassifier() ai.SubjectClassifier {
	return p.classifier
}

// QualityAssessor returns the mock assessor.
func (p *MockProvider) QualityAssessor() ai.QualityAssessor {
	return p.assessor
}

// Close records that the provider was closed.
func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

// GetMockClassifier returns the underlying mock classifier.
func (p *MockProvider) GetMockClassifier() *MockSubjectClassifier {
	return p.classifier
}

// GetMockAssessor returns the underlying mock assessor.
func (p *MockProvider) GetMockAssessor() *MockQualityAssessor {
	return p.assessor
}
