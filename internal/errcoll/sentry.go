package errcoll

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/getsentry/sentry-go"
)

// SentryCollector is an [Interface] implementation that sends errors to a
// Sentry-like HTTP API.
type SentryCollector struct {
	sentry *sentry.Client
}

// NewSentryCollector returns a new *SentryCollector.  cli must be non-nil.
func NewSentryCollector(cli *sentry.Client) (c *SentryCollector) {
	return &SentryCollector{
		sentry: cli,
	}
}

// type check
var _ Interface = (*SentryCollector)(nil)

// Collect implements the [Interface] interface for *SentryCollector.
func (c *SentryCollector) Collect(ctx context.Context, err error) {
	if !isReportable(err) {
		return
	}

	scope := sentry.NewScope()
	scope.SetTags(tagsFromCtx(ctx))

	_ = c.sentry.CaptureException(err, &sentry.EventHint{
		Context: ctx,
	}, scope)
}

// FlushCollector collects information about errors, possibly sending them to
// a remote location.  The collected errors should be flushed with Flush.
type FlushCollector interface {
	Interface

	// Flush waits until the underlying transport sends any buffered events to
	// the sentry server, blocking for at most the predefined timeout.
	Flush()
}

// type check
var _ FlushCollector = (*SentryCollector)(nil)

// flushTimeout is the timeout for flushing sentry errors.
const flushTimeout = 1 * time.Second

// Flush implements the [FlushCollector] interface for *SentryCollector.
func (c *SentryCollector) Flush() {
	_ = c.sentry.Flush(flushTimeout)
}

// isReportable returns true if the error is worth reporting, filtering out
// the connection breaks and timeouts that Mongo and Redis clients routinely
// surface during normal operation.
func isReportable(err error) (ok bool) {
	if isConnectionBreak(err) {
		return false
	}

	var netErr net.Error

	return !errors.As(err, &netErr) || !netErr.Timeout()
}

// isConnectionBreak returns true if err is an error about connection breaking
// or timing out.
func isConnectionBreak(err error) (ok bool) {
	switch {
	case
		errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ETIMEDOUT):
		return true
	default:
		return false
	}
}

// sentryTags is a convenient alias for map[string]string.
type sentryTags = map[string]string

// tagsFromCtx returns Sentry tags based on the information attached to ctx.
// It is a hook for attaching request-scoped context; the dispatcher does not
// currently store anything in ctx worth tagging with.
func tagsFromCtx(_ context.Context) (tags sentryTags) {
	return sentryTags{}
}
