package agdservice

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/robfig/cron/v3"
)

// CronRefreshWorker is an [Interface] implementation that refreshes its
// [Refresher] according to a cron schedule: the ranking refresher must run
// at a fixed wall-clock offset (minute 30 of every hour), which a plain
// interval ticker cannot express without drifting across restarts.
type CronRefreshWorker struct {
	logger  *slog.Logger
	context func() (ctx context.Context, cancel context.CancelFunc)
	cron    *cron.Cron
	refr    Refresher
	entryID cron.EntryID
}

// CronRefreshWorkerConfig is the configuration structure for a
// *CronRefreshWorker.
type CronRefreshWorkerConfig struct {
	// Context is used to provide a context for the Refresher's Refresh
	// method.
	Context func() (ctx context.Context, cancel context.CancelFunc)

	// Refresher is the entity being refreshed.
	Refresher Refresher

	// Logger is used for logging the operation of the worker.
	Logger *slog.Logger

	// Schedule is the cron expression describing when to refresh, for
	// example "30 * * * *" for minute 30 of every hour.
	Schedule string
}

// NewCronRefreshWorker returns a new *CronRefreshWorker with the provided
// parameters.  c must not be nil and c.Schedule must be a valid five-field
// cron expression.
func NewCronRefreshWorker(c *CronRefreshWorkerConfig) (w *CronRefreshWorker, err error) {
	cr := cron.New()

	w = &CronRefreshWorker{
		logger:  c.Logger,
		context: c.Context,
		cron:    cr,
		refr:    c.Refresher,
	}

	w.entryID, err = cr.AddFunc(c.Schedule, w.refresh)
	if err != nil {
		return nil, err
	}

	return w, nil
}

// type check
var _ service.Interface = (*CronRefreshWorker)(nil)

// Start implements the [service.Interface] interface for *CronRefreshWorker.
// It performs one refresh immediately so the ranking is populated before the
// process starts serving, then starts the cron schedule for every refresh
// after that.  err is always nil; a failure of the initial refresh is only
// logged, since refr is expected to report its own errors.
func (w *CronRefreshWorker) Start(ctx context.Context) (err error) {
	w.logger.InfoContext(ctx, "performing initial refresh")
	w.refresh()

	w.logger.InfoContext(ctx, "starting cron refresh worker", "next", w.cron.Entry(w.entryID).Next)
	w.cron.Start()

	return nil
}

// Shutdown implements the [service.Interface] interface for
// *CronRefreshWorker.  err is always nil.
func (w *CronRefreshWorker) Shutdown(ctx context.Context) (err error) {
	stopCtx := w.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "shut down successfully")

	return nil
}

// refresh refreshes the entity and logs the status of the refresh.  It is
// invoked by the cron scheduler, which does not propagate errors, so
// refreshers are expected to report their own errors via errcoll.
func (w *CronRefreshWorker) refresh() {
	ctx, cancel := w.context()
	defer cancel()

	ctx = slogutil.ContextWithLogger(ctx, w.logger)

	err := w.refr.Refresh(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "cron refresh failed", slogutil.KeyError, err)
	}
}
