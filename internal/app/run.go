package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/caionorder/redirectd/internal/agdservice"
	"golang.org/x/sys/unix"
)

// Exit status constants.
const (
	statusSuccess = 0
	statusError   = 1
)

// shutdownTimeout bounds how long a graceful shutdown is given before the
// process exits anyway.
const shutdownTimeout = 10 * time.Second

// startable is the subset of [agdservice.Interface] every long-running
// component of the process implements.
type startable interface {
	Start(ctx context.Context) (err error)
	Shutdown(ctx context.Context) (err error)
}

// run starts every service, blocks until a termination signal arrives, and
// shuts everything down in reverse order.
func run(logger *slog.Logger, crashRptr *crashReporter, svcs ...startable) (status int) {
	ctx := context.Background()

	all := append([]startable{crashRptr}, svcs...)

	status = startAll(ctx, logger, all)
	if status != statusSuccess {
		return status
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGINT, unix.SIGQUIT, unix.SIGTERM)

	received := <-sig
	logger.Info("received signal", "signal", received)

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return shutdownAll(shutdownCtx, logger, all)
}

// startAll starts every service in order, stopping at the first failure.
func startAll(ctx context.Context, logger *slog.Logger, all []startable) (status int) {
	for _, svc := range all {
		err := svc.Start(ctx)
		if err != nil {
			logger.Error("starting service", "err", err)

			return statusError
		}
	}

	return statusSuccess
}

// shutdownAll shuts down every service in reverse order, continuing past
// individual failures so that every service gets a chance to stop.
func shutdownAll(ctx context.Context, logger *slog.Logger, all []startable) (status int) {
	status = statusSuccess
	for i := len(all) - 1; i >= 0; i-- {
		err := all[i].Shutdown(ctx)
		if err != nil {
			logger.Error("shutting down service", "index", i, "err", err)
			status = statusError
		}
	}

	logger.Info("shut down")

	return status
}

// type check
var _ startable = agdservice.Empty{}
