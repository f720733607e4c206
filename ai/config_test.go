package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, "qwen2.5:3b", cfg.ClassifierModel)
	assert.Equal(t, "qwen2.5:3b", cfg.AssessorModel)
	assert.InDelta(t, 0.5, cfg.MinConfidence, 1e-9)
	assert.Equal(t, 4000, cfg.MaxAbstractChars)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with one model for both services", func(t *testing.T) {
		cfg := NewConfig(WithModel("gpt-4o-mini"))

		assert.Equal(t, "gpt-4o-mini", cfg.ClassifierModel)
		assert.Equal(t, "gpt-4o-mini", cfg.AssessorModel)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("http://custom:8080/v1"),
			WithToken("sk-test"),
			WithClassifierModel("classify"),
			WithAssessorModel("assess"),
			WithMinConfidence(0.7),
			WithMaxAbstractChars(100),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.Host)
		assert.Equal(t, "sk-test", cfg.Token)
		assert.Equal(t, "classify", cfg.ClassifierModel)
		assert.Equal(t, "assess", cfg.AssessorModel)
		assert.InDelta(t, 0.7, cfg.MinConfidence, 1e-9)
		assert.Equal(t, 100, cfg.MaxAbstractChars)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Host: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.Host)
			assert.Equal(t, "none", cfg.Token)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Host:            "http://localhost:11434",
			ClassifierModel: "qwen2.5:3b",
			AssessorModel:   "qwen2.5:3b",
			MinConfidence:   0.5,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing host", func(c *Config) { c.Host = "" }, "Host"},
		{"missing classifier model", func(c *Config) { c.ClassifierModel = "" }, "ClassifierModel"},
		{"missing assessor model", func(c *Config) { c.AssessorModel = "" }, "AssessorModel"},
		{"confidence too low", func(c *Config) { c.MinConfidence = -0.1 }, "MinConfidence"},
		{"confidence too high", func(c *Config) { c.MinConfidence = 1.5 }, "MinConfidence"},
		{"negative abstract length", func(c *Config) { c.MaxAbstractChars = -1 }, "MaxAbstractChars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("confidence at boundaries", func(t *testing.T) {
		cfg := valid()
		cfg.MinConfidence = 0
		assert.NoError(t, cfg.Validate())
		cfg.MinConfidence = 1
		assert.NoError(t, cfg.Validate())
	})
}
