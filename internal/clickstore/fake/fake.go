// Package fake provides an in-memory [clickstore.Recorder] for tests.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/caionorder/redirectd/internal/clickstore"
)

// Recorder is an in-memory, concurrency-safe [clickstore.Recorder] for
// tests.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]*clickstore.ClickCounter

	// Err, when set, is returned by IncrementClick instead of incrementing.
	Err error
}

// New returns a new, empty *Recorder.
func New() (r *Recorder) {
	return &Recorder{
		counters: map[string]*clickstore.ClickCounter{},
	}
}

// type check
var _ clickstore.Recorder = (*Recorder)(nil)

// IncrementClick implements the [clickstore.Recorder] interface for
// *Recorder.
func (r *Recorder) IncrementClick(
	_ context.Context,
	linkID string,
) (c *clickstore.ClickCounter, err error) {
	if r.Err != nil {
		return nil, r.Err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.counters[linkID]
	if !ok {
		cur = &clickstore.ClickCounter{LinkID: linkID, CreatedAt: time.Now()}
		r.counters[linkID] = cur
	}

	cur.Count++

	copied := *cur

	return &copied, nil
}

// CountOf returns the current count for linkID, for test assertions.
func (r *Recorder) CountOf(linkID string) (n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[linkID]; ok {
		return c.Count
	}

	return 0
}
