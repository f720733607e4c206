// Package config loads medingest settings.
//
// Values are layered: built-in defaults, then an optional TOML file, then a
// .env file, then MEDINGEST_* environment variables. The result is checked
// by Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/poiesic/medingest/ai"
	"github.com/poiesic/medingest/retry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MEDINGEST_"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration values.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Ingest  IngestConfig  `toml:"ingest"`
	Retry   RetryConfig   `toml:"retry"`
	PubMed  PubMedConfig  `toml:"pubmed"`
	Redis   RedisConfig   `toml:"redis"`
	Kafka   KafkaConfig   `toml:"kafka"`
	AI      AIConfig      `toml:"ai"`
	Log     LogConfig     `toml:"log"`
}

// StorageConfig locates the badger store.
type StorageConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// IngestConfig tunes the pipeline.
type IngestConfig struct {
	BatchSize     int           `toml:"batch_size"`
	Workers       int           `toml:"workers"`
	DefaultScore  float64       `toml:"default_score"`
	RecordTimeout time.Duration `toml:"record_timeout"`
	BatchTimeout  time.Duration `toml:"batch_timeout"`
	FetchTimeout  time.Duration `toml:"fetch_timeout"`
	CommitTimeout time.Duration `toml:"commit_timeout"`
}

// RetryConfig holds the fetch and commit retry policies.
type RetryConfig struct {
	Fetch  RetryPolicy `toml:"fetch"`
	Commit RetryPolicy `toml:"commit"`
}

// RetryPolicy mirrors retry.Policy.
type RetryPolicy struct {
	MaxAttempts int           `toml:"max_attempts"`
	BaseDelay   time.Duration `toml:"base_delay"`
	MaxDelay    time.Duration `toml:"max_delay"`
	Jitter      float64       `toml:"jitter"`
}

// Policy converts to a retry.Policy.
func (p RetryPolicy) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: p.MaxAttempts,
		BaseDelay:   p.BaseDelay,
		MaxDelay:    p.MaxDelay,
		Jitter:      p.Jitter,
	}
}

// PubMedConfig configures the E-utilities client.
type PubMedConfig struct {
	BaseURL           string        `toml:"base_url"`
	APIKey            string        `toml:"api_key"`
	Tool              string        `toml:"tool"`
	Email             string        `toml:"email"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
}

// RedisConfig enables the shared fingerprint index and status mirror when
// Addr is set.
type RedisConfig struct {
	Addr string `toml:"addr"`

	// Key prefixes. Empty uses the storage/redis defaults.
	FingerprintPrefix string `toml:"fingerprint_prefix"`
	StatusPrefix      string `toml:"status_prefix"`

	// FingerprintTTL of zero keeps fingerprints forever.
	FingerprintTTL time.Duration `toml:"fingerprint_ttl"`
	StatusTTL      time.Duration `toml:"status_ttl"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// KafkaConfig enables index signals when Broker is set.
type KafkaConfig struct {
	Broker    string `toml:"broker"`
	Topic     string `toml:"topic"`
	QueueSize int    `toml:"queue_size"`
}

// Enabled reports whether Kafka is configured.
func (c KafkaConfig) Enabled() bool { return c.Broker != "" }

// AIConfig selects LLM-backed scoring and classification.
type AIConfig struct {
	Host             string  `toml:"host"`
	Token            string  `toml:"token"`
	ClassifierModel  string  `toml:"classifier_model"`
	AssessorModel    string  `toml:"assessor_model"`
	MinConfidence    float64 `toml:"min_confidence"`
	MaxAbstractChars int     `toml:"max_abstract_chars"`

	// Score uses the assessor model for quality scores.
	Score bool `toml:"score"`
	// Classify uses the classifier model for subject areas.
	Classify bool `toml:"classify"`
}

// Enabled reports whether any LLM-backed stage is on.
func (c AIConfig) Enabled() bool { return c.Score || c.Classify }

// Options converts to ai config options.
func (c AIConfig) Options() []ai.ConfigOption {
	return []ai.ConfigOption{
		ai.WithHost(c.Host),
		ai.WithToken(c.Token),
		ai.WithClassifierModel(c.ClassifierModel),
		ai.WithAssessorModel(c.AssessorModel),
		ai.WithMinConfidence(c.MinConfidence),
		ai.WithMaxAbstractChars(c.MaxAbstractChars),
	}
}

// LogConfig configures logging. File is optional.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	fetch := retry.DefaultPolicy()
	commit := retry.DefaultPolicy()
	return &Config{
		Storage: StorageConfig{Path: "medingest.db"},
		Ingest: IngestConfig{
			BatchSize:     100,
			Workers:       4,
			DefaultScore:  0.7,
			RecordTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Minute,
			FetchTimeout:  time.Minute,
			CommitTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			Fetch:  RetryPolicy{fetch.MaxAttempts, fetch.BaseDelay, fetch.MaxDelay, fetch.Jitter},
			Commit: RetryPolicy{commit.MaxAttempts, commit.BaseDelay, commit.MaxDelay, commit.Jitter},
		},
		PubMed: PubMedConfig{
			BaseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			Tool:    "medingest",
			Timeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			StatusTTL: 7 * 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:     "medingest.index",
			QueueSize: 256,
		},
		AI: AIConfig{
			Host:             aiDefaults.Host,
			Token:            aiDefaults.Token,
			ClassifierModel:  aiDefaults.ClassifierModel,
			AssessorModel:    aiDefaults.AssessorModel,
			MinConfidence:    aiDefaults.MinConfidence,
			MaxAbstractChars: aiDefaults.MaxAbstractChars,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds a Config. path is an optional TOML file; an empty path skips
// it. A .env file in the working directory is loaded if present, without
// overriding variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MEDINGEST_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	env.str("STORAGE_PATH", &c.Storage.Path)
	env.boolean("STORAGE_IN_MEMORY", &c.Storage.InMemory)

	env.integer("INGEST_BATCH_SIZE", &c.Ingest.BatchSize)
	env.integer("INGEST_WORKERS", &c.Ingest.Workers)
	env.float("INGEST_DEFAULT_SCORE", &c.Ingest.DefaultScore)
	env.duration("INGEST_RECORD_TIMEOUT", &c.Ingest.RecordTimeout)
	env.duration("INGEST_BATCH_TIMEOUT", &c.Ingest.BatchTimeout)
	env.duration("INGEST_FETCH_TIMEOUT", &c.Ingest.FetchTimeout)
	env.duration("INGEST_COMMIT_TIMEOUT", &c.Ingest.CommitTimeout)

	env.integer("RETRY_FETCH_MAX_ATTEMPTS", &c.Retry.Fetch.MaxAttempts)
	env.integer("RETRY_COMMIT_MAX_ATTEMPTS", &c.Retry.Commit.MaxAttempts)

	env.str("PUBMED_BASE_URL", &c.PubMed.BaseURL)
	env.str("PUBMED_API_KEY", &c.PubMed.APIKey)
	env.str("PUBMED_EMAIL", &c.PubMed.Email)
	env.float("PUBMED_REQUESTS_PER_SECOND", &c.PubMed.RequestsPerSecond)

	env.str("REDIS_ADDR", &c.Redis.Addr)

	env.str("KAFKA_BROKER", &c.Kafka.Broker)
	env.str("KAFKA_TOPIC", &c.Kafka.Topic)

	env.str("AI_HOST", &c.AI.Host)
	env.str("AI_TOKEN", &c.AI.Token)
	if model, ok := env.get("AI_MODEL"); ok {
		c.AI.ClassifierModel = model
		c.AI.AssessorModel = model
	}
	env.str("AI_CLASSIFIER_MODEL", &c.AI.ClassifierModel)
	env.str("AI_ASSESSOR_MODEL", &c.AI.AssessorModel)
	env.boolean("AI_SCORE", &c.AI.Score)
	env.boolean("AI_CLASSIFY", &c.AI.Classify)

	env.str("LOG_LEVEL", &c.Log.Level)
	env.str("LOG_FILE", &c.Log.File)

	return errors.Join(env.errs...)
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Storage.InMemory || c.Storage.Path != "", "storage.path is required")
	check(c.Ingest.BatchSize > 0, "ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	check(c.Ingest.Workers > 0, "ingest.workers must be positive, got %d", c.Ingest.Workers)
	check(c.Ingest.DefaultScore >= 0 && c.Ingest.DefaultScore <= 1, "ingest.default_score must be between 0 and 1")
	check(c.Retry.Fetch.MaxAttempts > 0, "retry.fetch.max_attempts must be positive")
	check(c.Retry.Commit.MaxAttempts > 0, "retry.commit.max_attempts must be positive")
	check(c.Retry.Fetch.Jitter >= 0 && c.Retry.Fetch.Jitter <= 1, "retry.fetch.jitter must be between 0 and 1")
	check(c.Retry.Commit.Jitter >= 0 && c.Retry.Commit.Jitter <= 1, "retry.commit.jitter must be between 0 and 1")
	check(c.PubMed.RequestsPerSecond >= 0, "pubmed.requests_per_second must not be negative")
	check(!c.Kafka.Enabled() || c.Kafka.Topic != "", "kafka.topic is required with kafka.broker")
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err))
	}
	if c.AI.Enabled() {
		aiCfg := ai.NewConfig(c.AI.Options()...)
		if err := aiCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}
	return errors.Join(errs...)
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (use debug, info, warn or error)", s)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(name string) (string, bool) {
	v, ok := r.lookup(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *envReader) fail(name string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
}

func (r *envReader) str(name string, dst *string) {
	if v, ok := r.get(name); ok {
		*dst = v
	}
}

func (r *envReader) integer(name string, dst *int) {
	if v, ok := r.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) float(name string, dst *float64) {
	if v, ok := r.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) boolean(name string, dst *bool) {
	if v, ok := r.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) duration(name string, dst *time.Duration) {
	if v, ok := r.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = d
	}
}
