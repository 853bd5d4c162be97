// Package fake provides an in-memory [analytics.Repository] for tests.
package fake

import (
	"context"

	"github.com/caionorder/redirectd/internal/analytics"
)

// Repository is a static, in-memory [analytics.Repository] for tests.
type Repository struct {
	// Rows is returned verbatim by BestPosts, regardless of the query
	// passed in.
	Rows []analytics.Row

	// Err, when set, is returned by BestPosts instead of Rows.
	Err error

	// TotalsResult and ByDomainResult are returned verbatim by Totals, or
	// TotalsErr instead when it is set.
	TotalsResult   analytics.Totals
	ByDomainResult []analytics.DomainTraffic
	TotalsErr      error

	// DistinctResult is returned verbatim by Distinct.
	DistinctResult []string
	DistinctErr    error
}

// type check
var _ analytics.Repository = (*Repository)(nil)

// BestPosts implements the [analytics.Repository] interface for *Repository.
func (r *Repository) BestPosts(
	_ context.Context,
	_ analytics.Query,
) (rows []analytics.Row, err error) {
	if r.Err != nil {
		return nil, r.Err
	}

	return r.Rows, nil
}

// Totals implements the [analytics.Repository] interface for *Repository.
func (r *Repository) Totals(
	_ context.Context,
	_ analytics.Query,
) (totals analytics.Totals, byDomain []analytics.DomainTraffic, err error) {
	if r.TotalsErr != nil {
		return analytics.Totals{}, nil, r.TotalsErr
	}

	return r.TotalsResult, r.ByDomainResult, nil
}

// Distinct implements the [analytics.Repository] interface for *Repository.
func (r *Repository) Distinct(_ context.Context, _ string) (values []string, err error) {
	if r.DistinctErr != nil {
		return nil, r.DistinctErr
	}

	return r.DistinctResult, nil
}
