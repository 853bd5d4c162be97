package errcoll

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// WriterCollector is an [Interface] implementation that writes errors to an
// [io.Writer], for use when no remote error-collection endpoint is
// configured.
type WriterCollector struct {
	w      io.Writer
	logger *slog.Logger
}

// NewWriterCollector returns a new *WriterCollector.  w and logger must not be
// nil.
func NewWriterCollector(w io.Writer, logger *slog.Logger) (c *WriterCollector) {
	return &WriterCollector{
		w:      w,
		logger: logger,
	}
}

// type check
var _ Interface = (*WriterCollector)(nil)

// Collect implements the [Interface] interface for *WriterCollector.
func (c *WriterCollector) Collect(ctx context.Context, err error) {
	_, wErr := fmt.Fprintf(c.w, "%s: caught error: %s\n", time.Now().Format(time.RFC3339), err)
	if wErr != nil {
		c.logger.WarnContext(ctx, "writing error report", "original_error", err, "write_error", wErr)
	}
}
