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

package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Host is the base URL of an OpenAI-compatible chat API.
	// Example: "http://localhost:11434/v1" for a local server
	Host string

	// Token is the API token. Local servers accept any value.
	Token string

	// ClassifierModel is the model used for subject classification.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ClassifierModel string

	// AssessorModel is the model used for quality assessment.
	AssessorModel string

	// MinConfidence is the minimum confidence (0-1) for a subject label.
	// Labels below this threshold are filtered out.
	// Default: 0.5
	MinConfidence float64

	// MaxAbstractChars truncates abstracts sent to models.
	// Default: 4000
	MaxAbstractChars int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the API host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithToken sets the API token.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithModel sets both models to the same identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
		c.AssessorModel = model
	}
}

// WithClassifierModel sets the classification model identifier.
func WithClassifierModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
	}
}

// WithAssessorModel sets the assessment model identifier.
func WithAssessorModel(model string) ConfigOption {
	return func(c *Config) {
		c.AssessorModel = model
	}
}

// WithMinConfidence sets the label confidence threshold.
func WithMinConfidence(min float64) ConfigOption {
	return func(c *Config) {
		c.MinConfidence = min
	}
}

// WithMaxAbstractChars sets the abstract truncation length.
func WithMaxAbstractChars(n int) ConfigOption {
	return func(c *Config) {
		c.MaxAbstractChars = n
	}
}

// DefaultConfig returns a Config with defaults for a local OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Host:             "http://localhost:11434/v1",
		Token:            "none",
		ClassifierModel:  "qwen2.5:3b",
		AssessorModel:    "qwen2.5:3b",
		MinConfidence:    0.5,
		MaxAbstractChars: 4000,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithClassifierModel("gpt-4o-mini"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
	if c.Token == "" {
		c.Token = "none"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.ClassifierModel == "" {
		return errors.New("ai config: ClassifierModel is required")
	}
	if c.AssessorModel == "" {
		return errors.New("ai config: AssessorModel is required")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("ai config: MinConfidence must be between 0 and 1")
	}
	if c.MaxAbstractChars < 0 {
		return errors.New("ai config: MaxAbstractChars must not be negative")
	}
	return nil
}
