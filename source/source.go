// Package source defines the contract between the ingestion controller and
// the external literature sources it pulls from.
//
// An Adapter pages through a source with an opaque cursor. The controller
// stores the cursor of the last committed batch and hands it back on resume,
// so adapters must be able to restart from any cursor they produced.
package source

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/medingest/core"
)

// Batch is one page of records.
type Batch struct {
	Records []core.Record
	// Invalid holds one error per entry the source read but could not
	// decode. Each counts as a fetched and failed record.
	Invalid []error
	// Next is the cursor of the following page.
	Next core.Cursor
	// HasMore is false once the source is exhausted.
	HasMore bool
}

// Adapter fetches records from one configured source.
//
// FetchBatch returns up to limit records starting at cursor. A nil cursor
// means the beginning. Errors worth retrying are marked with
// core.MarkTransientSource; errors that will never succeed with core.MarkFatal.
type Adapter interface {
	FetchBatch(ctx context.Context, cursor core.Cursor, limit int) (*Batch, error)
}

// Factory builds an adapter for a source configuration.
type Factory func(cfg core.SourceConfig) (Adapter, error)

// Registry maps source kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Open builds the adapter for cfg.Kind.
// Unknown kinds and factory errors are fatal for the job.
func (r *Registry) Open(cfg core.SourceConfig) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, core.MarkFatal(fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Kind),
			fmt.Sprintf("use one of %v", r.Kinds()))
	}

	adapter, err := factory(cfg)
	if err != nil {
		return nil, core.MarkFatal(err, "")
	}
	return adapter, nil
}
