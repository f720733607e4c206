// Package mock provides a scripted source.Adapter for tests.
package mock

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/source"
)

// Adapter serves pre-built pages. The cursor is the decimal page index.
// It allows custom behavior injection via function fields.
type Adapter struct {
	// Pages are served in order, one per FetchBatch call.
	Pages [][]core.Record

	// Failures are returned by successive calls before any page is served.
	// A nil entry lets that call through.
	Failures []error

	// BeforeFetch is called with the page index before the page is served.
	// A non-nil error is returned from FetchBatch.
	BeforeFetch func(ctx context.Context, page int) error

	// FetchBatchFunc replaces the default behavior entirely if set.
	FetchBatchFunc func(ctx context.Context, cursor core.Cursor, limit int) (*source.Batch, error)

	mu      sync.Mutex
	calls   int
	cursors []core.Cursor
}

var _ source.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter serving pages.
func NewAdapter(pages ...[]core.Record) *Adapter {
	return &Adapter{Pages: pages}
}

// FetchBatch serves the page addressed by cursor.
func (a *Adapter) FetchBatch(ctx context.Context, cursor core.Cursor, limit int) (*source.Batch, error) {
	a.mu.Lock()
	a.calls++
	a.cursors = append(a.cursors, slices.Clone(cursor))
	var injected error
	if len(a.Failures) > 0 {
		injected = a.Failures[0]
		a.Failures = a.Failures[1:]
	}
	a.mu.Unlock()

	if a.FetchBatchFunc != nil {
		return a.FetchBatchFunc(ctx, cursor, limit)
	}
	if injected != nil {
		return nil, injected
	}

	page, err := PageOf(cursor)
	if err != nil {
		return nil, err
	}
	if a.BeforeFetch != nil {
		if err := a.BeforeFetch(ctx, page); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page >= len(a.Pages) {
		return &source.Batch{Next: cursor, HasMore: false}, nil
	}

	return &source.Batch{
		Records: slices.Clone(a.Pages[page]),
		Next:    CursorFor(page + 1),
		HasMore: page+1 < len(a.Pages),
	}, nil
}

// CallCount returns the number of times FetchBatch was called.
func (a *Adapter) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Cursors returns the cursors FetchBatch was called with, in call order.
func (a *Adapter) Cursors() []core.Cursor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.cursors)
}

// CursorFor returns the cursor addressing page.
func CursorFor(page int) core.Cursor {
	return core.Cursor(strconv.Itoa(page))
}

// PageOf decodes a cursor produced by CursorFor. A nil cursor is page 0.
func PageOf(cursor core.Cursor) (int, error) {
	if len(cursor) == 0 {
		return 0, nil
	}
	page, err := strconv.Atoi(string(cursor))
	if err != nil || page < 0 {
		return 0, core.MarkFatal(fmt.Errorf("%w: %q", source.ErrInvalidCursor, cursor), "")
	}
	return page, nil
}

// Records builds n records with unique PubMed IDs starting at first.
func Records(first, n int, subject string) []core.Record {
	records := make([]core.Record, 0, n)
	for i := first; i < first+n; i++ {
		records = append(records, core.Record{
			ExternalID:  strconv.Itoa(i),
			Source:      "pubmed",
			Title:       fmt.Sprintf("Study %d of %s outcomes", i, subject),
			Abstract:    fmt.Sprintf("Abstract of study %d.", i),
			Journal:     "Journal of Tests",
			SubjectHint: subject,
		})
	}
	return records
}

// Pages splits n generated records into pages of size.
func Pages(n, size int, subject string) [][]core.Record {
	var pages [][]core.Record
	for first := 1; first <= n; first += size {
		count := min(size, n-first+1)
		pages = append(pages, Records(first, count, subject))
	}
	return pages
}
