// Package analytics provides read-only access to the analytics aggregation
// store consulted by the ranking refresher, per spec.md §4.1.
package analytics

import (
	"context"
	"strconv"
)

// Row is a single, strictly typed result row of the best-post aggregation.
// Analytics rows in the upstream ETL carry many loosely typed, optional
// numeric-or-string fields; Row parses all of that once, at ingest, into the
// fields the refresher actually needs, per spec.md §9's "dynamic `any`
// fields" design note.
type Row struct {
	// Domain is the publisher domain this row belongs to.
	Domain string

	// CustomValue is the post identifier, the `custom_value` field under the
	// `id_post_wp` custom key.
	CustomValue string

	// ECPM is the row's effective CPM, revenue per 1000 impressions.  Missing
	// or unparseable source values are treated as zero.
	ECPM float64
}

// Query describes the single aggregation the refresher ever runs: best post
// per domain, grouped by (domain, custom_key, custom_value), for one UTC
// calendar day.
type Query struct {
	// Start and End bound the query range; the refresher always sets both to
	// the current UTC date.
	Start, End string

	// Domains restricts the aggregation to these publisher domains.
	Domains []string

	// CustomKey is the custom-field name to group by; the refresher always
	// passes "id_post_wp".
	CustomKey string
}

// Totals is an aggregate of clicks, impressions, and revenue across a set of
// analytics rows, for the GET /api/stats reporting endpoint.
type Totals struct {
	Clicks      float64
	Impressions float64
	Revenue     float64
}

// DomainTraffic is a [Totals] scoped to a single publisher domain, the
// "traffic" block of GET /api/stats.
type DomainTraffic struct {
	Domain string
	Totals
}

// Repository is a read-only aggregation entry point over the analytics
// store.
type Repository interface {
	// BestPosts returns one row per (domain, custom_value) pair matching q,
	// with ECPM already aggregated.  The caller reduces this to one winner
	// per domain; Repository does no grouping beyond what q.CustomKey
	// implies.
	BestPosts(ctx context.Context, q Query) (rows []Row, err error)

	// Totals aggregates clicks, impressions, and revenue across every row
	// matching q, both overall and broken down per domain.
	Totals(ctx context.Context, q Query) (totals Totals, byDomain []DomainTraffic, err error)

	// Distinct returns the distinct values of field across the analytics
	// collection, for GET /api/distinct/:field.
	Distinct(ctx context.Context, field string) (values []string, err error)
}

// Empty is a [Repository] implementation that returns no rows and no error,
// used for degraded startup when the document store is unavailable (spec.md
// §7's PermanentConfig).
type Empty struct{}

// type check
var _ Repository = Empty{}

// BestPosts implements the [Repository] interface for Empty.
func (Empty) BestPosts(context.Context, Query) (rows []Row, err error) { return nil, nil }

// Totals implements the [Repository] interface for Empty.
func (Empty) Totals(context.Context, Query) (totals Totals, byDomain []DomainTraffic, err error) {
	return Totals{}, nil, nil
}

// Distinct implements the [Repository] interface for Empty.
func (Empty) Distinct(context.Context, string) (values []string, err error) { return nil, nil }

// ParseECPM parses s as the ECPM double the way the ingest layer does for
// every numeric-or-string analytics field: a missing or unparseable value is
// zero, never an error.
func ParseECPM(s string) (ecpm float64) {
	if s == "" {
		return 0
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return v
}
