package agdservice

import "context"

// Refresher is the interface for entities that can update themselves.
type Refresher interface {
	// Refresh is called by a [CronRefreshWorker].  Errors are not
	// propagated to the caller; refreshers must report them themselves.
	Refresh(ctx context.Context) (err error)
}

// RefresherFunc is an adapter to allow the use of ordinary functions as
// [Refresher].
type RefresherFunc func(ctx context.Context) (err error)

// type check
var _ Refresher = RefresherFunc(nil)

// Refresh implements the [Refresher] interface for RefresherFunc.
func (f RefresherFunc) Refresh(ctx context.Context) (err error) {
	return f(ctx)
}
