// Package linkstore manages the redirects_links collection: one active
// record per publisher domain, reconciled best-effort by the ranking
// refresher after each cache publish, per spec.md §4.1 and §6.
package linkstore

import (
	"context"
	"time"
)

// LinkRecord is a single publisher-domain link record.
type LinkRecord struct {
	ID        string
	Domain    string
	URL       string
	Status    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store manages link records.
type Store interface {
	// DeactivateAll clears the active status on every link record for
	// domains not present in active, so that stale winners from a previous
	// refresh stop being reported as active.
	DeactivateAll(ctx context.Context, keepActive []string) (err error)

	// UpsertActive creates or updates the active link record for domain
	// with the given url, setting status to true.
	UpsertActive(ctx context.Context, domain, url string) (err error)

	// ListActive returns every link record currently marked active, for the
	// GET /api/links reporting endpoint.
	ListActive(ctx context.Context) (records []LinkRecord, err error)
}

// Empty is a [Store] implementation that does nothing, used for degraded
// startup when the document store is unavailable (spec.md §7's
// PermanentConfig).
type Empty struct{}

// type check
var _ Store = Empty{}

// DeactivateAll implements the [Store] interface for Empty.
func (Empty) DeactivateAll(context.Context, []string) (err error) { return nil }

// UpsertActive implements the [Store] interface for Empty.
func (Empty) UpsertActive(context.Context, string, string) (err error) { return nil }

// ListActive implements the [Store] interface for Empty.
func (Empty) ListActive(context.Context) (records []LinkRecord, err error) { return nil, nil }
