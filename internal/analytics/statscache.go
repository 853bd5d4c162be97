package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
)

// statsCacheTTL bounds how long a GET /api/stats or /api/distinct response
// is served from cache before the underlying aggregation runs again.  The
// reporting endpoints tolerate staleness on this order; BestPosts, which
// feeds the ranking refresher, is never cached, since a refresh rendering a
// stale winner would defeat spec.md §4.1 entirely.
const statsCacheTTL = 30 * time.Second

const statsCacheSize = 256

// totalsEntry bundles a Totals call's two return values for a single cache
// slot.
type totalsEntry struct {
	totals   Totals
	byDomain []DomainTraffic
}

// CachedRepository wraps a [Repository], memoizing Totals and Distinct for
// [statsCacheTTL].  BestPosts is passed through uncached.
type CachedRepository struct {
	repo   Repository
	totals gcache.Cache
	distnc gcache.Cache
}

// NewCachedRepository returns a new *CachedRepository wrapping repo.  repo
// must not be nil.
func NewCachedRepository(repo Repository) (c *CachedRepository) {
	return &CachedRepository{
		repo:   repo,
		totals: gcache.New(statsCacheSize).LRU().Build(),
		distnc: gcache.New(statsCacheSize).LRU().Build(),
	}
}

// type check
var _ Repository = (*CachedRepository)(nil)

// BestPosts implements the [Repository] interface for *CachedRepository by
// passing through to the wrapped repository uncached.
func (c *CachedRepository) BestPosts(ctx context.Context, q Query) (rows []Row, err error) {
	return c.repo.BestPosts(ctx, q)
}

// Totals implements the [Repository] interface for *CachedRepository.
func (c *CachedRepository) Totals(
	ctx context.Context,
	q Query,
) (totals Totals, byDomain []DomainTraffic, err error) {
	key := totalsKey(q)

	cached, cacheErr := c.totals.Get(key)
	if cacheErr == nil {
		entry, ok := cached.(totalsEntry)
		if ok {
			return entry.totals, entry.byDomain, nil
		}
	}

	totals, byDomain, err = c.repo.Totals(ctx, q)
	if err != nil {
		return Totals{}, nil, err
	}

	_ = c.totals.SetWithExpire(key, totalsEntry{totals: totals, byDomain: byDomain}, statsCacheTTL)

	return totals, byDomain, nil
}

// Distinct implements the [Repository] interface for *CachedRepository.
func (c *CachedRepository) Distinct(ctx context.Context, field string) (values []string, err error) {
	cached, cacheErr := c.distnc.Get(field)
	if cacheErr == nil {
		if vals, ok := cached.([]string); ok {
			return vals, nil
		}
	}

	values, err = c.repo.Distinct(ctx, field)
	if err != nil {
		return nil, err
	}

	_ = c.distnc.SetWithExpire(field, values, statsCacheTTL)

	return values, nil
}

// totalsKey builds the cache key for a Totals query.
func totalsKey(q Query) (key string) {
	return fmt.Sprintf("%s|%s|%s", q.Start, q.End, q.Domains)
}
