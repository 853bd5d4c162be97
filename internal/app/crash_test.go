package app

import (
	"context"
	"os"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCrashReporter_disabled(t *testing.T) {
	r, err := newCrashReporter(&crashReporterConfig{
		logger:  slogutil.NewDiscardLogger(),
		enabled: false,
	})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestCrashReporter_nilReceiver(t *testing.T) {
	var r *crashReporter

	assert.NoError(t, r.Start(context.Background()))
	assert.NoError(t, r.Shutdown(context.Background()))
}

func TestCrashReporter_StartShutdown_emptyFileRemoved(t *testing.T) {
	dir := t.TempDir()

	r, err := newCrashReporter(&crashReporterConfig{
		logger:  slogutil.NewDiscardLogger(),
		dirPath: dir,
		enabled: true,
	})
	require.NoError(t, err)
	require.NotNil(t, r)

	require.NoError(t, r.Start(context.Background()))

	path := r.file.Name()
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	require.NoError(t, r.Shutdown(context.Background()))

	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCrashReporter_Shutdown_nonEmptyFileKept(t *testing.T) {
	dir := t.TempDir()

	r, err := newCrashReporter(&crashReporterConfig{
		logger:  slogutil.NewDiscardLogger(),
		dirPath: dir,
		enabled: true,
	})
	require.NoError(t, err)
	require.NotNil(t, r)

	require.NoError(t, r.Start(context.Background()))

	_, writeErr := r.file.WriteString("crash!")
	require.NoError(t, writeErr)

	path := r.file.Name()

	require.NoError(t, r.Shutdown(context.Background()))

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)

	_ = os.Remove(path)
}
