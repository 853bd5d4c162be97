// Package redircache defines the shared-cache contract used by the ranking
// refresher, the dispatch engine's fronting cache, and the dispatch engine's
// visitor and spill-over counters.
package redircache

import (
	"context"
	"time"
)

// Client is the shared-cache interface.  It extends the teacher's remotekv
// GET/SET pair with the counter and lifecycle operations spec.md §6
// names: INCR, EXPIRE, DEL, and PING.
type Client interface {
	// Get returns val by key.  ok is false if key does not exist.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)

	// Set stores val under key with the given TTL.  A zero ttl means the key
	// never expires.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) (err error)

	// Incr atomically increments the integer stored at key by one, creating
	// it with value 1 if it does not exist, and returns the new value.
	Incr(ctx context.Context, key string) (n int64, err error)

	// Expire sets or refreshes the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) (err error)

	// Del removes key.  It is not an error for key to not exist.
	Del(ctx context.Context, key string) (err error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) (err error)
}
