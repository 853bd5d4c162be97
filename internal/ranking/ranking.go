// Package ranking implements the ranking refresher of spec.md §4.1: it
// aggregates the analytics store into a per-domain best-post ranking,
// publishes it to the shared cache, and reconciles the link store.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/caionorder/redirectd/internal/analytics"
	"github.com/caionorder/redirectd/internal/errcoll"
	"github.com/caionorder/redirectd/internal/linkstore"
	"github.com/caionorder/redirectd/internal/redircache"
	"github.com/caionorder/redirectd/internal/registry"
)

// Cache keys, authoritative names and TTLs per spec.md §6.
const (
	BestLinksMapKey  = "redirect:best_links_map"
	SortedDomainsKey = "redirect:sorted_domains"

	// PublishTTL is the TTL applied to both published cache keys.
	PublishTTL = time.Hour

	// customKeyPostID is the analytics custom-field name the refresher
	// groups by.
	customKeyPostID = "id_post_wp"
)

// Metrics is the interface for the ranking refresher's Prometheus metrics.
type Metrics interface {
	// ObserveRefresh reports the duration of a single Refresh run and the
	// error that made it fail, if any.  Refresh itself returns nil even then.
	ObserveRefresh(seconds float64, err error)
}

// EmptyMetrics is a [Metrics] implementation that does nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveRefresh implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveRefresh(_ float64, _ error) {}

// BestLinkEntry is the ranking's per-domain winner.
type BestLinkEntry struct {
	Domain string  `json:"domain"`
	PostID string  `json:"postId"`
	URL    string  `json:"url"`
	ECPM   float64 `json:"ecpm"`
}

// SortedDomain is a [BestLinkEntry] flattened into the eCPM-sorted list.
type SortedDomain struct {
	Domain string  `json:"domain"`
	PostID string  `json:"postId"`
	URL    string  `json:"url"`
	ECPM   float64 `json:"ecpm"`
}

// Store holds the in-memory published ranking and refreshes it from the
// analytics repository.  It uses the same two-lock shape as the teacher's
// internal/profiledb.Default: mapsMu guards the served snapshot, refreshMu
// ensures at most one refresh runs at a time even if the scheduler and a
// manual trigger race.
type Store struct {
	logger *slog.Logger

	analytics analytics.Repository
	cache     redircache.Client
	links     linkstore.Store
	errColl   errcoll.Interface
	reg       *registry.Registry
	metrics   Metrics

	mapsMu        *sync.RWMutex
	bestByDomain  map[string]BestLinkEntry
	sortedDomains []SortedDomain

	refreshMu *sync.Mutex
}

// Config is the configuration structure for a *Store.
type Config struct {
	Logger    *slog.Logger
	Analytics analytics.Repository
	Cache     redircache.Client
	Links     linkstore.Store
	ErrColl   errcoll.Interface
	Registry  *registry.Registry

	// Metrics is the Prometheus metrics implementation.  If nil, it
	// defaults to [EmptyMetrics].
	Metrics Metrics
}

// New returns a new, empty *Store.  c must not be nil.
func New(c *Config) (s *Store) {
	m := c.Metrics
	if m == nil {
		m = EmptyMetrics{}
	}

	return &Store{
		logger:    c.Logger,
		analytics: c.Analytics,
		cache:     c.Cache,
		links:     c.Links,
		errColl:   c.ErrColl,
		reg:       c.Registry,
		metrics:   m,
		mapsMu:    &sync.RWMutex{},
		refreshMu: &sync.Mutex{},
	}
}

// BestLinkMap returns a snapshot of the current per-domain winners.
func (s *Store) BestLinkMap() (m map[string]BestLinkEntry) {
	s.mapsMu.RLock()
	defer s.mapsMu.RUnlock()

	m = make(map[string]BestLinkEntry, len(s.bestByDomain))
	for k, v := range s.bestByDomain {
		m[k] = v
	}

	return m
}

// SortedDomains returns a snapshot of the current eCPM-sorted domain list.
func (s *Store) SortedDomains() (sd []SortedDomain) {
	s.mapsMu.RLock()
	defer s.mapsMu.RUnlock()

	sd = make([]SortedDomain, len(s.sortedDomains))
	copy(sd, s.sortedDomains)

	return sd
}

// Refresh implements [agdservice.Refresher].  It performs the six-step
// algorithm of spec.md §4.1.
func (s *Store) Refresh(ctx context.Context) (err error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	var refreshErr error
	defer func() {
		s.metrics.ObserveRefresh(time.Since(start).Seconds(), refreshErr)
	}()

	today := time.Now().UTC().Format("2006-01-02")
	rows, err := s.analytics.BestPosts(ctx, analytics.Query{
		Start:     today,
		End:       today,
		Domains:   s.reg.Hosts(),
		CustomKey: customKeyPostID,
	})
	if err != nil {
		refreshErr = err
		errcoll.Collect(ctx, s.errColl, s.logger, "querying analytics", err)

		return nil
	}

	if len(rows) == 0 {
		s.logger.InfoContext(ctx, "analytics returned no rows; keeping previous ranking")

		return nil
	}

	best := buildBestByDomain(rows)
	sorted := sortedFromBest(best)

	err = s.publish(ctx, best, sorted)
	if err != nil {
		refreshErr = err
		errcoll.Collect(ctx, s.errColl, s.logger, "publishing ranking", err)

		return nil
	}

	s.mapsMu.Lock()
	s.bestByDomain = best
	s.sortedDomains = sorted
	s.mapsMu.Unlock()

	s.reconcileLinks(ctx, best)

	s.logger.InfoContext(ctx, "refreshed ranking", "domains", len(best))

	return nil
}

// buildBestByDomain implements step 2 of spec.md §4.1's algorithm.
func buildBestByDomain(rows []analytics.Row) (best map[string]BestLinkEntry) {
	best = make(map[string]BestLinkEntry, len(rows))
	for _, row := range rows {
		if row.Domain == "" || row.CustomValue == "" {
			continue
		}

		cur, ok := best[row.Domain]
		if ok && row.ECPM <= cur.ECPM {
			continue
		}

		best[row.Domain] = BestLinkEntry{
			Domain: row.Domain,
			PostID: row.CustomValue,
			URL:    composeURL(row.Domain, row.CustomValue),
			ECPM:   row.ECPM,
		}
	}

	return best
}

// composeURL implements step 3 of spec.md §4.1's algorithm.
func composeURL(domain, postID string) (u string) {
	return fmt.Sprintf("https://%s/?p=%s", domain, url.QueryEscape(postID))
}

// sortedFromBest implements step 4 of spec.md §4.1's algorithm.  Ties are
// broken by the iteration order Go's map range happens to produce, which is
// implementation-defined but stable within one refresh, matching the
// "implementation-defined but stable" tie-break spec.md §3 calls for.
func sortedFromBest(best map[string]BestLinkEntry) (sorted []SortedDomain) {
	sorted = make([]SortedDomain, 0, len(best))
	for _, e := range best {
		sorted = append(sorted, SortedDomain{
			Domain: e.Domain,
			PostID: e.PostID,
			URL:    e.URL,
			ECPM:   e.ECPM,
		})
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ECPM > sorted[j].ECPM
	})

	return sorted
}

// publish implements step 5 of spec.md §4.1's algorithm: both keys must
// succeed or the refresh is partial, in which case the caller retains the
// previous in-memory copies.
func (s *Store) publish(
	ctx context.Context,
	best map[string]BestLinkEntry,
	sorted []SortedDomain,
) (err error) {
	bestJSON, err := json.Marshal(best)
	if err != nil {
		return fmt.Errorf("marshaling best link map: %w", err)
	}

	sortedJSON, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("marshaling sorted domains: %w", err)
	}

	err = s.cache.Set(ctx, BestLinksMapKey, bestJSON, PublishTTL)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", BestLinksMapKey, err)
	}

	err = s.cache.Set(ctx, SortedDomainsKey, sortedJSON, PublishTTL)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", SortedDomainsKey, err)
	}

	return nil
}

// reconcileLinks implements step 6 of spec.md §4.1's algorithm.  Failures
// are logged but never abort the cache publication that already happened in
// publish.
func (s *Store) reconcileLinks(ctx context.Context, best map[string]BestLinkEntry) {
	domains := make([]string, 0, len(best))
	for d := range best {
		domains = append(domains, d)
	}

	err := s.links.DeactivateAll(ctx, domains)
	if err != nil {
		s.logger.WarnContext(ctx, "deactivating stale links", slogutil.KeyError, err)
	}

	for _, e := range best {
		uErr := s.links.UpsertActive(ctx, e.Domain, e.URL)
		if uErr != nil {
			s.logger.WarnContext(ctx, "upserting active link", "domain", e.Domain, slogutil.KeyError, uErr)
		}
	}
}
