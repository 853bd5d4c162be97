package app

import (
	"context"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
)

// recordingService is a [startable] that records its own Start/Shutdown
// calls, in order, into a shared slice.
type recordingService struct {
	name  string
	order *[]string
}

func (s *recordingService) Start(context.Context) (err error) {
	*s.order = append(*s.order, "start:"+s.name)

	return nil
}

func (s *recordingService) Shutdown(context.Context) (err error) {
	*s.order = append(*s.order, "shutdown:"+s.name)

	return nil
}

func TestStartAll_order(t *testing.T) {
	var order []string
	logger := slogutil.NewDiscardLogger()

	all := []startable{
		&recordingService{name: "a", order: &order},
		&recordingService{name: "b", order: &order},
		&recordingService{name: "c", order: &order},
	}

	status := startAll(context.Background(), logger, all)

	assert.Equal(t, statusSuccess, status)
	assert.Equal(t, []string{"start:a", "start:b", "start:c"}, order)
}

func TestShutdownAll_reverseOrder(t *testing.T) {
	var order []string
	logger := slogutil.NewDiscardLogger()

	all := []startable{
		&recordingService{name: "a", order: &order},
		&recordingService{name: "b", order: &order},
		&recordingService{name: "c", order: &order},
	}

	status := shutdownAll(context.Background(), logger, all)

	assert.Equal(t, statusSuccess, status)
	assert.Equal(t, []string{"shutdown:c", "shutdown:b", "shutdown:a"}, order)
}

type failingStartService struct{}

func (failingStartService) Start(context.Context) (err error) { return assert.AnError }

func (failingStartService) Shutdown(context.Context) (err error) { return nil }

func TestStartAll_stopsAtFirstFailure(t *testing.T) {
	var order []string
	logger := slogutil.NewDiscardLogger()

	all := []startable{
		&recordingService{name: "a", order: &order},
		failingStartService{},
		&recordingService{name: "c", order: &order},
	}

	status := startAll(context.Background(), logger, all)

	assert.Equal(t, statusError, status)
	assert.Equal(t, []string{"start:a"}, order)
}

type failingShutdownService struct{ name string }

func (failingShutdownService) Start(context.Context) (err error) { return nil }

func (failingShutdownService) Shutdown(context.Context) (err error) { return assert.AnError }

func TestShutdownAll_continuesPastFailure(t *testing.T) {
	var order []string
	logger := slogutil.NewDiscardLogger()

	all := []startable{
		&recordingService{name: "a", order: &order},
		failingShutdownService{name: "b"},
		&recordingService{name: "c", order: &order},
	}

	status := shutdownAll(context.Background(), logger, all)

	assert.Equal(t, statusError, status)
	assert.Equal(t, []string{"shutdown:c", "shutdown:a"}, order)
}

func TestRun_crashReporterNilSafe(t *testing.T) {
	var order []string
	logger := slogutil.NewDiscardLogger()

	var nilReporter *crashReporter

	all := []startable{nilReporter, &recordingService{name: "a", order: &order}}

	// A nil *crashReporter stored in a startable slice must not panic: its
	// Start/Shutdown methods are nil-receiver safe. This exercises the same
	// append([]startable{crashRptr}, svcs...) shape run() builds.
	assert.Equal(t, statusSuccess, startAll(context.Background(), logger, all))
	assert.Equal(t, statusSuccess, shutdownAll(context.Background(), logger, all))
}
