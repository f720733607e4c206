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

// Package ai provides abstractions for the model-backed services used during
// ingestion.
//
// Two services are defined:
//
//   - SubjectClassifier: assigns medical subject areas to an article
//   - QualityAssessor: rates an article's content, writing and citations
//
// AIProvider aggregates both for initialization and lifecycle management.
// Neither service is required: the classify and quality packages fall back
// to metadata heuristics when no provider is configured, and treat provider
// failures as recoverable.
//
// # Implementation Packages
//
//   - ai/openai: implementation over OpenAI-compatible chat APIs
//   - ai/mock: test doubles
//
// Public constructors (openai.NewProvider, openai.NewSubjectClassifier) return
// interface types. Mock constructors return concrete types so tests can inject
// behavior and read call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	labels, err := provider.SubjectClassifier().ClassifySubjects(ctx, ai.ArticleText{
//	    Title:    "Statin therapy after myocardial infarction",
//	    Abstract: "...",
//	})
package ai
