// Package dispatch implements the per-request dispatch engine of spec.md
// §4.2: it selects a publisher domain and post, decorates the destination
// URL with UTM parameters, and reports the result the HTTP layer turns into
// a redirect.  The engine is pure with respect to the HTTP layer — it never
// touches http.ResponseWriter — so it is directly unit-testable.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/caionorder/redirectd/internal/clickstore"
	"github.com/caionorder/redirectd/internal/errcoll"
	"github.com/caionorder/redirectd/internal/frontcache"
	"github.com/caionorder/redirectd/internal/ranking"
	"github.com/caionorder/redirectd/internal/redircache"
	"github.com/caionorder/redirectd/internal/registry"
)

// Cache keys and TTLs outside the two ranking keys, per spec.md §6.
const (
	domainCounterKey = "redirect:domain:counter"
	maxDomainCounter  = 1_000_000

	visitorCursorTTL = time.Hour
	antiReplayTTL    = 5 * time.Second

	// emergencyURL is the fallback target of spec.md §4.2's "Emergency
	// fallback": any error in steps 2-9 redirects here instead of
	// propagating.
	emergencyURL = "https://useuapp.com/random"
)

// Metrics is the interface for the dispatch engine's Prometheus metrics.
type Metrics interface {
	// ObserveOutcome reports the selection branch that produced a
	// redirect: "ranked", "registry_fallback", "spill", "emergency", or
	// "favicon".
	ObserveOutcome(outcome string)

	// ObserveCacheResult reports a fronting-cache lookup result.
	ObserveCacheResult(hit bool)

	// IncClickFailure reports a fire-and-forget click-recording failure.
	IncClickFailure()
}

// EmptyMetrics is a [Metrics] implementation that does nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveOutcome implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveOutcome(_ string) {}

// ObserveCacheResult implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveCacheResult(_ bool) {}

// IncClickFailure implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncClickFailure() {}

// outcome labels reported through Metrics.ObserveOutcome.
const (
	outcomeRanked           = "ranked"
	outcomeRegistryFallback = "registry_fallback"
	outcomeSpill            = "spill"
	outcomeEmergency        = "emergency"
	outcomeFavicon          = "favicon"
)

// Request is the HTTP-agnostic input to [Engine.Dispatch].
type Request struct {
	// Path is the request's URL path, consulted by the favicon
	// short-circuit of step 1.
	Path string

	// RawURL is the request's full raw URL, also consulted by the
	// favicon short-circuit.
	RawURL string

	// ForwardedFor is the raw value of the X-Forwarded-For header, if
	// any.
	ForwardedFor string

	// RemoteAddr is the socket remote address, used when ForwardedFor is
	// absent.
	RemoteAddr string

	// Query carries the request's query parameters: language and the
	// UTM/click-id passthrough fields of step 7.
	Query url.Values
}

// Result is the outcome of [Engine.Dispatch].
type Result struct {
	// Status is either http.StatusNoContent (favicon short-circuit) or
	// http.StatusFound (redirect, including the emergency fallback).
	Status int

	// Location is the redirect target.  Empty when Status is
	// http.StatusNoContent.
	Location string

	// LinkID is the click-store key the dispatch selected.  Empty when
	// Status is http.StatusNoContent or the emergency fallback fired.
	LinkID string
}

// Engine is the dispatch engine of spec.md §4.2.
type Engine struct {
	logger *slog.Logger

	cache  redircache.Client
	front  *frontcache.Cache
	clicks clickstore.Recorder
	reg    *registry.Registry

	errColl errcoll.Interface
	clock   timeutil.Clock
	metrics Metrics
}

// Config is the configuration structure for a *Engine.
type Config struct {
	Logger *slog.Logger

	// Cache is the shared-cache client used directly for the visitor
	// cursor, the spill counter, and the anti-replay memo.  The two
	// ranking keys are read exclusively through Front.
	Cache redircache.Client

	// Front is the in-memory fronting cache of spec.md §4.3, wrapping
	// Cache.
	Front *frontcache.Cache

	Clicks   clickstore.Recorder
	Registry *registry.Registry
	ErrColl  errcoll.Interface

	// Clock is used to compute the current hour of day.  Defaults to
	// [timeutil.SystemClock] when nil.
	Clock timeutil.Clock

	// Metrics is the Prometheus metrics implementation.  If nil, it
	// defaults to [EmptyMetrics].
	Metrics Metrics
}

// New returns a new *Engine.  c must not be nil.
func New(c *Config) (e *Engine) {
	clock := c.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	m := c.Metrics
	if m == nil {
		m = EmptyMetrics{}
	}

	return &Engine{
		logger:  c.Logger,
		cache:   c.Cache,
		front:   c.Front,
		clicks:  c.Clicks,
		reg:     c.Registry,
		errColl: c.ErrColl,
		clock:   clock,
		metrics: m,
	}
}

// Dispatch implements spec.md §4.2's algorithm.  It never returns an error:
// any failure in steps 2-9 is logged and converted into the emergency
// fallback redirect, matching the requirement that the dispatch endpoint
// always returns a redirect or a 204.
func (e *Engine) Dispatch(ctx context.Context, req *Request) (res *Result) {
	if strings.Contains(req.Path, "favicon") || strings.Contains(req.RawURL, "favicon") {
		e.metrics.ObserveOutcome(outcomeFavicon)

		return &Result{Status: http.StatusNoContent}
	}

	res, err := e.dispatch(ctx, req)
	if err != nil {
		errcoll.Collect(ctx, e.errColl, e.logger, "dispatching", err)
		e.metrics.ObserveOutcome(outcomeEmergency)

		return &Result{Status: http.StatusFound, Location: emergencyURL}
	}

	return res
}

func (e *Engine) dispatch(ctx context.Context, req *Request) (res *Result, err error) {
	ip := clientIP(req)

	visit, err := e.incrVisitorCursor(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("incrementing visitor cursor: %w", err)
	}

	sorted := e.sortedDomains(ctx)

	domain, finalURL, linkID, err := e.selectTarget(ctx, int(visit), sorted)
	if err != nil {
		return nil, fmt.Errorf("selecting target: %w", err)
	}

	finalURL, err = applyLanguagePrefix(finalURL, req.Query.Get("language"), e.reg.IsInverted(domain))
	if err != nil {
		return nil, fmt.Errorf("applying language prefix: %w", err)
	}

	finalURL = decorateUTM(finalURL, linkID, req.Query)

	e.recordClick(ctx, linkID)
	e.recordAntiReplay(ctx, ip, finalURL)

	return &Result{Status: http.StatusFound, Location: finalURL, LinkID: linkID}, nil
}

// clientIP implements step 2 of spec.md §4.2.
func clientIP(req *Request) (ip string) {
	if req.ForwardedFor != "" {
		first, _, _ := strings.Cut(req.ForwardedFor, ",")
		first = strings.TrimSpace(first)
		if first != "" {
			return first
		}
	}

	if req.RemoteAddr != "" {
		return req.RemoteAddr
	}

	return "unknown"
}

// incrVisitorCursor implements step 3 of spec.md §4.2.
func (e *Engine) incrVisitorCursor(ctx context.Context, ip string) (visit int64, err error) {
	hour := e.clock.Now().UTC().Hour()
	key := fmt.Sprintf("visitor_count:%s:%d", ip, hour)

	visit, err = e.cache.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	if visit == 1 {
		err = e.cache.Expire(ctx, key, visitorCursorTTL)
		if err != nil {
			return 0, err
		}
	}

	return visit, nil
}

// sortedDomains implements step 4 of spec.md §4.2.  Failures are tolerated:
// a missing or unreadable ranking is treated as an empty list, letting
// selectTarget fall through to the registry-order or spill path, per the
// TransientUpstream semantics of spec.md §7.
func (e *Engine) sortedDomains(ctx context.Context) (sorted []ranking.SortedDomain) {
	val, ok, err := e.front.Get(ctx, ranking.SortedDomainsKey)
	if err != nil {
		errcoll.Collect(ctx, e.errColl, e.logger, "loading sorted domains", err)

		return nil
	}

	e.metrics.ObserveCacheResult(ok)

	if !ok {
		return nil
	}

	err = json.Unmarshal(val, &sorted)
	if err != nil {
		errcoll.Collect(ctx, e.errColl, e.logger, "decoding sorted domains", err)

		return nil
	}

	return sorted
}

// bestLinkMap is the tolerant counterpart of sortedDomains for the
// registry-order fallback branch of step 5.
func (e *Engine) bestLinkMap(ctx context.Context) (best map[string]ranking.BestLinkEntry) {
	val, ok, err := e.front.Get(ctx, ranking.BestLinksMapKey)
	if err != nil {
		errcoll.Collect(ctx, e.errColl, e.logger, "loading best link map", err)

		return nil
	}

	e.metrics.ObserveCacheResult(ok)

	if !ok {
		return nil
	}

	err = json.Unmarshal(val, &best)
	if err != nil {
		errcoll.Collect(ctx, e.errColl, e.logger, "decoding best link map", err)

		return nil
	}

	return best
}

// selectTarget implements step 5 of spec.md §4.2.
func (e *Engine) selectTarget(
	ctx context.Context,
	visit int,
	sorted []ranking.SortedDomain,
) (domain, finalURL, linkID string, err error) {
	n := len(sorted)

	switch {
	case n > 0 && visit <= n:
		entry := sorted[visit-1]
		e.metrics.ObserveOutcome(outcomeRanked)

		return entry.Domain, entry.URL, fmt.Sprintf("best_%s_%s", entry.Domain, entry.PostID), nil
	case n == 0 && visit <= e.reg.Len():
		d := e.reg.At(visit - 1)
		e.metrics.ObserveOutcome(outcomeRegistryFallback)

		if entry, ok := e.bestLinkMap(ctx)[d.Host]; ok {
			return d.Host, entry.URL, fmt.Sprintf("best_%s_%s", d.Host, entry.PostID), nil
		}

		return d.Host, fmt.Sprintf("https://%s/random", d.Host), fmt.Sprintf("fallback_%s", d.Host), nil
	default:
		host, spillErr := e.spill(ctx)
		if spillErr != nil {
			return "", "", "", spillErr
		}

		e.metrics.ObserveOutcome(outcomeSpill)

		return host, fmt.Sprintf("https://%s/random", host), fmt.Sprintf("random_%s", host), nil
	}
}

// spill implements the third branch of step 5: the global round-robin
// counter, reset to 1 once it exceeds 1,000,000 per spec.md §3.
func (e *Engine) spill(ctx context.Context) (host string, err error) {
	n, err := e.cache.Incr(ctx, domainCounterKey)
	if err != nil {
		return "", fmt.Errorf("incrementing domain counter: %w", err)
	}

	if n > maxDomainCounter {
		n = 1

		rerr := e.cache.Set(ctx, domainCounterKey, []byte("1"), 0)
		if rerr != nil {
			e.logger.WarnContext(ctx, "resetting domain counter", slog.Any("err", rerr))
		}
	}

	idx := int((n - 1) % int64(e.reg.Len()))

	return e.reg.At(idx).Host, nil
}

// applyLanguagePrefix implements step 6 of spec.md §4.2.
//
// The literal rule text treats "pt" as just another language value for
// non-inverted domains, which would prepend "/pt" to the path; but the
// worked example in spec.md §8 item 4 shows a "pt" request to a
// non-inverted domain leaving the path unchanged. Both branches are
// reconciled by treating "pt" as the site-wide default language that never
// produces a prefix, matching every worked example (see DESIGN.md).
func applyLanguagePrefix(rawURL, language string, inverted bool) (result string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", rawURL, err)
	}

	prefix := languagePrefix(language, inverted)
	if prefix != "" {
		u.Path = prefix + u.Path
	}

	return u.String(), nil
}

func languagePrefix(language string, inverted bool) (prefix string) {
	if language == "pt" {
		return ""
	}

	if inverted {
		if language == "" || language == "en" {
			return "/en"
		}

		return "/" + language
	}

	if language == "" {
		return ""
	}

	return "/" + language
}

// utmPassthroughKeys are the query parameters step 7 forwards verbatim when
// present, in the order spec.md §8's worked examples present them.
var utmPassthroughKeys = []string{"utm_term", "utm_content", "fbclid", "gclid"}

// decorateUTM implements step 7 of spec.md §4.2.  It builds the query
// string by hand rather than through [url.Values.Encode], since the latter
// sorts keys alphabetically and would not match the literal ordering the
// worked examples specify.
func decorateUTM(rawURL, linkID string, q url.Values) (result string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		// finalURL was already validated by applyLanguagePrefix; this
		// branch is unreachable in practice.
		return rawURL
	}

	source := firstNonEmpty(q.Get("utm_source"), "redron")
	medium := firstNonEmpty(q.Get("utm_medium"), "broadcast")
	campaign := firstNonEmpty(q.Get("utm_campaign"), linkID, "direct")

	params := []string{
		"utm_source=" + url.QueryEscape(source),
		"utm_medium=" + url.QueryEscape(medium),
		"utm_campaign=" + url.QueryEscape(campaign),
	}

	for _, key := range utmPassthroughKeys {
		if v := q.Get(key); v != "" {
			params = append(params, key+"="+url.QueryEscape(v))
		}
	}

	newQuery := strings.Join(params, "&")
	if u.RawQuery != "" {
		u.RawQuery = u.RawQuery + "&" + newQuery
	} else {
		u.RawQuery = newQuery
	}

	return u.String()
}

func firstNonEmpty(values ...string) (v string) {
	for _, val := range values {
		if val != "" {
			return val
		}
	}

	return ""
}

// recordClick implements step 8 of spec.md §4.2: fire-and-forget, logged on
// failure only.
func (e *Engine) recordClick(ctx context.Context, linkID string) {
	bgCtx := context.WithoutCancel(ctx)

	go func() {
		_, err := e.clicks.IncrementClick(bgCtx, linkID)
		if err != nil {
			errcoll.Collect(bgCtx, e.errColl, e.logger, "recording click", err)
			e.metrics.IncClickFailure()
		}
	}()
}

// recordAntiReplay implements step 9 of spec.md §4.2: fire-and-forget,
// logged on failure only.
func (e *Engine) recordAntiReplay(ctx context.Context, ip, finalURL string) {
	bgCtx := context.WithoutCancel(ctx)

	go func() {
		err := e.cache.Set(bgCtx, fmt.Sprintf("recent:%s", ip), []byte(finalURL), antiReplayTTL)
		if err != nil {
			errcoll.Collect(bgCtx, e.errColl, e.logger, "writing anti-replay memo", err)
		}
	}()
}
