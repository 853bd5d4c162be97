// Package fake provides an in-memory [redircache.Client] implementation for
// tests, with manual TTL bookkeeping instead of a live Redis connection.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/caionorder/redirectd/internal/redircache"
)

type entry struct {
	val     []byte
	expires time.Time
}

func (e entry) expired(now time.Time) (ok bool) {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Client is an in-memory, concurrency-safe [redircache.Client] for tests.
type Client struct {
	mu   sync.Mutex
	data map[string]entry

	// Now, when set, is used instead of time.Now, so that tests can control
	// TTL expiration deterministically.
	Now func() time.Time

	// PingErr, when set, is returned by Ping.
	PingErr error
}

// New returns a new, empty *Client.
func New() (c *Client) {
	return &Client{
		data: map[string]entry{},
		Now:  time.Now,
	}
}

// type check
var _ redircache.Client = (*Client)(nil)

// Get implements the [redircache.Client] interface for *Client.
func (c *Client) Get(_ context.Context, key string) (val []byte, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}

	if e.expired(c.Now()) {
		delete(c.data, key)

		return nil, false, nil
	}

	return e.val, true, nil
}

// Set implements the [redircache.Client] interface for *Client.
func (c *Client) Set(_ context.Context, key string, val []byte, ttl time.Duration) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = c.newEntry(val, ttl)

	return nil
}

// newEntry must only be called with c.mu held.
func (c *Client) newEntry(val []byte, ttl time.Duration) (e entry) {
	e = entry{val: val}
	if ttl > 0 {
		e.expires = c.Now().Add(ttl)
	}

	return e
}

// Incr implements the [redircache.Client] interface for *Client.
func (c *Client) Incr(_ context.Context, key string) (n int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok && e.expired(c.Now()) {
		ok = false
	}

	n = 1
	expires := time.Time{}
	if ok {
		var cur int64
		cur, err = decodeInt(e.val)
		if err != nil {
			return 0, err
		}

		n = cur + 1
		expires = e.expires
	}

	c.data[key] = entry{val: encodeInt(n), expires: expires}

	return n, nil
}

// Expire implements the [redircache.Client] interface for *Client.
func (c *Client) Expire(_ context.Context, key string, ttl time.Duration) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil
	}

	e.expires = c.Now().Add(ttl)
	c.data[key] = e

	return nil
}

// Del implements the [redircache.Client] interface for *Client.
func (c *Client) Del(_ context.Context, key string) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)

	return nil
}

// Ping implements the [redircache.Client] interface for *Client.
func (c *Client) Ping(_ context.Context) (err error) {
	return c.PingErr
}

// Len returns the number of live, non-expired keys.  It is a test-only
// helper, not part of [redircache.Client].
func (c *Client) Len() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	for _, e := range c.data {
		if !e.expired(now) {
			n++
		}
	}

	return n
}
