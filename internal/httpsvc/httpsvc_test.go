package httpsvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	analyticsfake "github.com/caionorder/redirectd/internal/analytics/fake"
	clickstorefake "github.com/caionorder/redirectd/internal/clickstore/fake"
	"github.com/caionorder/redirectd/internal/dispatch"
	"github.com/caionorder/redirectd/internal/frontcache"
	"github.com/caionorder/redirectd/internal/httpsvc"
	linkstorefake "github.com/caionorder/redirectd/internal/linkstore/fake"
	redircachefake "github.com/caionorder/redirectd/internal/redircache/fake"
	"github.com/caionorder/redirectd/internal/registry"
	"github.com/stretchr/testify/require"
)

func TestService_StartShutdown(t *testing.T) {
	cache := redircachefake.New()

	engine := dispatch.New(&dispatch.Config{
		Logger:   slogutil.NewDiscardLogger(),
		Cache:    cache,
		Front:    frontcache.New(cache),
		Clicks:   clickstorefake.New(),
		Registry: registry.New([]registry.Domain{{Host: "example.com"}}),
		ErrColl:  testErrColl(),
	})

	svc := httpsvc.New(&httpsvc.Config{
		Logger:    slogutil.NewDiscardLogger(),
		Addr:      "127.0.0.1:0",
		Engine:    engine,
		Refresher: errRefresher{},
		Analytics: &analyticsfake.Repository{},
		Links:     linkstorefake.New(),
		ErrColl:   testErrColl(),
	})

	require.NoError(t, svc.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, svc.Shutdown(ctx))
}
