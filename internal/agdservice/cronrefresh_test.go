package agdservice_test

import (
	"context"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/caionorder/redirectd/internal/agdservice"
	"github.com/stretchr/testify/require"
)

func TestCronRefreshWorker_badSchedule(t *testing.T) {
	refr, _ := newTestRefresher(t, nil)

	_, err := agdservice.NewCronRefreshWorker(&agdservice.CronRefreshWorkerConfig{
		Context: func() (ctx context.Context, cancel context.CancelFunc) {
			return context.WithTimeout(context.Background(), testTimeout)
		},
		Refresher: refr,
		Logger:    slogutil.NewDiscardLogger(),
		Schedule:  "not a schedule",
	})
	require.Error(t, err)
}

func TestCronRefreshWorker_startShutdown(t *testing.T) {
	refr, _ := newTestRefresher(t, nil)

	w, err := agdservice.NewCronRefreshWorker(&agdservice.CronRefreshWorkerConfig{
		Context: func() (ctx context.Context, cancel context.CancelFunc) {
			return context.WithTimeout(context.Background(), testTimeout)
		},
		Refresher: refr,
		Logger:    slogutil.NewDiscardLogger(),
		Schedule:  "30 * * * *",
	})
	require.NoError(t, err)

	err = w.Start(testutil.ContextWithTimeout(t, testTimeout))
	require.NoError(t, err)

	err = w.Shutdown(testutil.ContextWithTimeout(t, testTimeout))
	require.NoError(t, err)
}
