// Package frontcache implements the in-process fronting cache that sits in
// front of the shared Redis client for the ranking keys, per spec.md §4.3.
package frontcache

import (
	"context"
	"sync"
	"time"
)

// Freshness is the maximum age of a fronted value before it is considered
// stale and re-fetched from the shared cache, per spec.md §4.3.
const Freshness = 60 * time.Second

// backend is the subset of [redircache.Client] the fronting cache needs.
// Declared locally to avoid importing redircache just for the interface.
type backend interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
}

// copy is a locally-held value with the time it was fetched.
type copy struct {
	val       []byte
	fetchedAt time.Time
}

// Cache fronts a [backend] with a short-lived, in-process copy of the
// ranking keys, so that a hot dispatch path does not round-trip to Redis on
// every request.  Unlike a plain TTL cache, a fronted value is never evicted
// by age alone: per spec.md §4.3, if a refresh fails or finds nothing, the
// last known local copy keeps serving, however stale.
type Cache struct {
	backend backend

	mu    sync.Mutex
	local map[string]copy
}

// New returns a new *Cache.  be must not be nil.
func New(be backend) (c *Cache) {
	return &Cache{
		backend: be,
		local:   map[string]copy{},
	}
}

// Get returns the value for key.  If the local copy is younger than
// [Freshness], it is returned directly.  Otherwise Get issues a GET against
// the backend and refreshes the local copy; if that GET fails or finds
// nothing, the previous local copy is returned instead, however stale.
func (c *Cache) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	c.mu.Lock()
	cur, haveLocal := c.local[key]
	c.mu.Unlock()

	if haveLocal && time.Since(cur.fetchedAt) < Freshness {
		return cur.val, true, nil
	}

	fetched, fetchedOK, err := c.backend.Get(ctx, key)
	if err != nil || !fetchedOK {
		if haveLocal {
			return cur.val, true, nil
		}

		return nil, false, err
	}

	c.mu.Lock()
	c.local[key] = copy{val: fetched, fetchedAt: time.Now()}
	c.mu.Unlock()

	return fetched, true, nil
}

// Len returns the number of keys currently held in the local copy.
func (c *Cache) Len() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.local)
}

// Clear empties the local copy entirely, forcing the next Get for every key
// to consult the backend.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.local = map[string]copy{}
}
