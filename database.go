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

// Package medingest wires the ingestion pipeline to its stores, sources and
// services from a config.Config.
package medingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/medingest/ai"
	"github.com/poiesic/medingest/ai/openai"
	"github.com/poiesic/medingest/classify"
	"github.com/poiesic/medingest/config"
	"github.com/poiesic/medingest/index"
	"github.com/poiesic/medingest/ingestion"
	"github.com/poiesic/medingest/quality"
	"github.com/poiesic/medingest/reindex"
	"github.com/poiesic/medingest/source"
	"github.com/poiesic/medingest/source/file"
	"github.com/poiesic/medingest/source/pubmed"
	"github.com/poiesic/medingest/storage"
	"github.com/poiesic/medingest/storage/badger"
	"github.com/poiesic/medingest/storage/redis"
)

// ErrNoIndex is returned by Reindexer when no index transport is configured.
var ErrNoIndex = errors.New("no index transport configured (set kafka.broker)")

// DefaultShutdownTimeout bounds how long Close waits for running jobs to
// reach a batch boundary.
const DefaultShutdownTimeout = time.Minute

// Database owns the store and every service built on it.
type Database struct {
	store     *badger.Store
	sources   *source.Registry
	service   *ingestion.Service
	publisher index.Publisher
	provider  ai.AIProvider
	closers   []io.Closer
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger     *slog.Logger
	provider   ai.AIProvider
	notifier   index.Notifier
	httpClient *http.Client
	ingestOpts []ingestion.Option
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithAIProvider replaces the provider built from the [ai] section.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithNotifier replaces the notifier built from the [kafka] section. If it
// also implements index.Publisher it serves reindex runs too.
func WithNotifier(n index.Notifier) DatabaseOption {
	return func(o *databaseOptions) {
		o.notifier = n
	}
}

// WithHTTPClient sets the HTTP client of the PubMed source.
func WithHTTPClient(c *http.Client) DatabaseOption {
	return func(o *databaseOptions) {
		o.httpClient = c
	}
}

// WithIngestionOptions appends options applied after the configured ones.
func WithIngestionOptions(opts ...ingestion.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.ingestOpts = append(o.ingestOpts, opts...)
	}
}

// Open opens the store described by cfg and builds the ingestion service.
// Persisted jobs are not picked up until Service().Recover is called.
func Open(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	store, err := badger.OpenStore(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		return nil, err
	}
	db := &Database{
		store:   store,
		sources: newSourceRegistry(cfg.PubMed, options.httpClient),
		logger:  logger.With("component", "database"),
	}

	stores := ingestion.Stores{
		Records:      store.Records,
		Partitions:   store.Partitions,
		Checkpoints:  store.Checkpoints,
		Jobs:         store.Jobs,
		Fingerprints: store.Fingerprints,
	}
	ingestOpts := []ingestion.Option{
		ingestion.WithBatchSize(cfg.Ingest.BatchSize),
		ingestion.WithWorkers(cfg.Ingest.Workers),
		ingestion.WithDefaultScore(cfg.Ingest.DefaultScore),
		ingestion.WithTimeouts(cfg.Ingest.RecordTimeout, cfg.Ingest.BatchTimeout, cfg.Ingest.FetchTimeout, cfg.Ingest.CommitTimeout),
		ingestion.WithFetchRetry(cfg.Retry.Fetch.Policy()),
		ingestion.WithCommitRetry(cfg.Retry.Commit.Policy()),
		ingestion.WithLogger(logger),
	}

	if cfg.Redis.Enabled() {
		fingerprints := redis.NewFingerprintIndex(cfg.Redis.Addr, cfg.Redis.FingerprintPrefix, cfg.Redis.FingerprintTTL)
		mirror := redis.NewStatusMirror(cfg.Redis.Addr, cfg.Redis.StatusPrefix, cfg.Redis.StatusTTL)
		db.closers = append(db.closers, fingerprints, mirror)
		stores.Fingerprints = fingerprints
		ingestOpts = append(ingestOpts, ingestion.WithStatusMirror(mirror))
	}

	notifier := options.notifier
	if notifier == nil && cfg.Kafka.Enabled() {
		kafka := index.NewKafkaNotifier(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.QueueSize)
		db.closers = append(db.closers, kafka)
		notifier = kafka
	}
	if notifier != nil {
		ingestOpts = append(ingestOpts, ingestion.WithNotifier(notifier))
		if p, ok := notifier.(index.Publisher); ok {
			db.publisher = p
		}
	}

	if cfg.AI.Enabled() {
		provider := options.provider
		if provider == nil {
			provider, err = openai.NewProvider(ai.NewConfig(cfg.AI.Options()...))
			if err != nil {
				db.closeResources()
				return nil, err
			}
		}
		db.provider = provider
		if cfg.AI.Score {
			ingestOpts = append(ingestOpts, ingestion.WithScorer(quality.NewLLMScorer(provider.QualityAssessor())))
		}
		if cfg.AI.Classify {
			ingestOpts = append(ingestOpts, ingestion.WithClassifier(classify.NewLLMClassifier(provider.SubjectClassifier())))
		}
	}

	service, err := ingestion.NewService(stores, db.sources, append(ingestOpts, options.ingestOpts...)...)
	if err != nil {
		db.closeResources()
		return nil, err
	}
	db.service = service
	return db, nil
}

func newSourceRegistry(cfg config.PubMedConfig, httpClient *http.Client) *source.Registry {
	client := pubmed.NewClient(pubmed.Config{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Tool:              cfg.Tool,
		Email:             cfg.Email,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
		HTTPClient:        httpClient,
	})
	registry := source.NewRegistry()
	registry.Register(pubmed.Kind, client.Factory())
	registry.Register(file.Kind, file.New)
	return registry
}

// Close stops running jobs at their next batch boundary, leaving them
// running in the store so a later Recover resumes them, then releases
// every resource. Batches still in flight after DefaultShutdownTimeout are
// abandoned at their last checkpoint.
func (db *Database) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := db.service.Shutdown(ctx); err != nil {
		db.logger.Error("error stopping jobs", "err", err)
		errs = append(errs, err)
	}
	if err := db.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) closeResources() error {
	var errs []error
	for _, c := range db.closers {
		if err := c.Close(); err != nil {
			db.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Service returns the ingestion service.
func (db *Database) Service() *ingestion.Service {
	return db.service
}

// Sources returns the source registry.
func (db *Database) Sources() *source.Registry {
	return db.sources
}

func (db *Database) Records() storage.RecordRepository {
	return db.store.Records
}

func (db *Database) Partitions() storage.PartitionRepository {
	return db.store.Partitions
}

// Reindexer builds a reindex run over the stored records.
func (db *Database) Reindexer(cfg *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	if db.publisher == nil {
		return nil, ErrNoIndex
	}
	return reindex.NewReindexer(db.store.Records, db.publisher, cfg, progress), nil
}
