package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/AdguardTeam/golibs/errors"
)

// crashReporter sets a file for Go runtime crashes and unhandled panics, so
// that a process killed by a fatal crash leaves a diagnosable artifact
// behind instead of only a line in the container's stdout.
type crashReporter struct {
	file   *os.File
	logger *slog.Logger

	dirPath string
	pattern string
}

// crashReporterConfig is the configuration structure for a [crashReporter].
type crashReporterConfig struct {
	logger  *slog.Logger
	dirPath string
	enabled bool
}

// newCrashReporter returns a new properly initialized crash reporter, or
// nil, nil if c.enabled is false.
func newCrashReporter(c *crashReporterConfig) (r *crashReporter, err error) {
	defer func() { err = errors.Annotate(err, "crash reporter: %w") }()

	if !c.enabled {
		return nil, nil
	}

	pat := fmt.Sprintf("redirectd_%s_%07d_*.txt", time.Now().Format("20060102150405"), os.Getpid())

	return &crashReporter{
		logger:  c.logger,
		dirPath: c.dirPath,
		pattern: pat,
	}, nil
}

// Start sets the process-wide crash output to a fresh temp file.  If r is
// nil, err is nil.
func (r *crashReporter) Start(ctx context.Context) (err error) {
	if r == nil {
		return nil
	}

	r.file, err = os.CreateTemp(r.dirPath, r.pattern)
	if err != nil {
		return fmt.Errorf("creating crash output file: %w", err)
	}

	r.logger = r.logger.With("path", r.file.Name())
	r.logger.InfoContext(ctx, "set crash output")

	err = debug.SetCrashOutput(r.file, debug.CrashOptions{})
	if err != nil {
		return fmt.Errorf("setting crash output: %w", err)
	}

	return nil
}

// Shutdown closes and, if it was never written to, removes the crash output
// file.  If r is nil, err is nil.
func (r *crashReporter) Shutdown(ctx context.Context) (err error) {
	if r == nil {
		return nil
	}

	st, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("getting stat of crash file: %w", err)
	}

	if st.Size() > 0 {
		r.logger.InfoContext(ctx, "crash output is not empty; keeping")

		return nil
	}

	name := r.file.Name()
	err = r.file.Close()
	if err != nil {
		return fmt.Errorf("closing crash file: %w", err)
	}

	return os.Remove(name)
}
