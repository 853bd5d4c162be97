package httpsvc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/caionorder/redirectd/internal/analytics"
	analyticsfake "github.com/caionorder/redirectd/internal/analytics/fake"
	clickstorefake "github.com/caionorder/redirectd/internal/clickstore/fake"
	"github.com/caionorder/redirectd/internal/dispatch"
	"github.com/caionorder/redirectd/internal/errcoll"
	"github.com/caionorder/redirectd/internal/frontcache"
	"github.com/caionorder/redirectd/internal/httpsvc"
	linkstorefake "github.com/caionorder/redirectd/internal/linkstore/fake"
	"github.com/caionorder/redirectd/internal/ranking"
	redircachefake "github.com/caionorder/redirectd/internal/redircache/fake"
	"github.com/caionorder/redirectd/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (n int, err error) { return len(p), nil }

type errRefresher struct{ err error }

func (r errRefresher) Refresh(context.Context) (err error) { return r.err }

func (r errRefresher) BestLinkMap() (m map[string]ranking.BestLinkEntry) {
	return map[string]ranking.BestLinkEntry{
		"example.com": {Domain: "example.com", PostID: "1", URL: "https://example.com/1", ECPM: 1.5},
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) (err error) { return p.err }

func testErrColl() errcoll.Interface {
	return errcoll.NewWriterCollector(nopWriter{}, slogutil.NewDiscardLogger())
}

func testEngine(t *testing.T) (e *dispatch.Engine) {
	t.Helper()

	cache := redircachefake.New()

	return dispatch.New(&dispatch.Config{
		Logger:   slogutil.NewDiscardLogger(),
		Cache:    cache,
		Front:    frontcache.New(cache),
		Clicks:   clickstorefake.New(),
		Registry: registry.New([]registry.Domain{{Host: "example.com"}}),
		ErrColl:  testErrColl(),
	})
}

func newTestHandler(t *testing.T) (
	h http.Handler,
	analyticsRepo *analyticsfake.Repository,
	links *linkstorefake.Store,
) {
	t.Helper()

	cache := redircachefake.New()
	reg := registry.New([]registry.Domain{{Host: "example.com"}})
	errColl := testErrColl()

	engine := dispatch.New(&dispatch.Config{
		Logger:   slogutil.NewDiscardLogger(),
		Cache:    cache,
		Front:    frontcache.New(cache),
		Clicks:   clickstorefake.New(),
		Registry: reg,
		ErrColl:  errColl,
	})

	analyticsRepo = &analyticsfake.Repository{}
	links = linkstorefake.New()

	h = httpsvc.New(&httpsvc.Config{
		Logger:    slogutil.NewDiscardLogger(),
		Addr:      "127.0.0.1:0",
		Engine:    engine,
		Refresher: errRefresher{},
		Analytics: analyticsRepo,
		Links:     links,
		Cache:     cache,
		Store:     stubPinger{},
		ErrColl:   errColl,
	}).Handler()

	return h, analyticsRepo, links
}

func TestHandler_Dispatch(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/some/path", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Location"))
}

func TestHandler_Health(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestHandler_HealthDetailed(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/health/detailed", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "dependencies")
	})

	t.Run("store not configured", func(t *testing.T) {
		h := httpsvc.New(&httpsvc.Config{
			Logger:    slogutil.NewDiscardLogger(),
			Addr:      "127.0.0.1:0",
			Engine:    testEngine(t),
			Refresher: errRefresher{},
			Analytics: &analyticsfake.Repository{},
			Links:     linkstorefake.New(),
			Cache:     redircachefake.New(),
			Store:     nil,
			ErrColl:   testErrColl(),
		}).Handler()

		req := httptest.NewRequest(http.MethodGet, "/health/detailed", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("store ping fails", func(t *testing.T) {
		h := httpsvc.New(&httpsvc.Config{
			Logger:    slogutil.NewDiscardLogger(),
			Addr:      "127.0.0.1:0",
			Engine:    testEngine(t),
			Refresher: errRefresher{},
			Analytics: &analyticsfake.Repository{},
			Links:     linkstorefake.New(),
			Cache:     redircachefake.New(),
			Store:     stubPinger{err: assert.AnError},
			ErrColl:   testErrColl(),
		}).Handler()

		req := httptest.NewRequest(http.MethodGet, "/health/detailed", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandler_Process(t *testing.T) {
	t.Run("method not allowed", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/process", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/process", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Success bool                             `json:"success"`
			Message string                           `json:"message"`
			Data    map[string]ranking.BestLinkEntry `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.NotEmpty(t, body.Data)
	})

	t.Run("refresh error", func(t *testing.T) {
		h := httpsvc.New(&httpsvc.Config{
			Logger:    slogutil.NewDiscardLogger(),
			Addr:      "127.0.0.1:0",
			Engine:    testEngine(t),
			Refresher: errRefresher{err: assert.AnError},
			Analytics: &analyticsfake.Repository{},
			Links:     linkstorefake.New(),
			ErrColl:   testErrColl(),
		}).Handler()

		req := httptest.NewRequest(http.MethodGet, "/api/process", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_Stats(t *testing.T) {
	h, analyticsRepo, _ := newTestHandler(t)

	analyticsRepo.TotalsResult = analytics.Totals{Clicks: 3, Impressions: 10, Revenue: 1.5}
	analyticsRepo.ByDomainResult = []analytics.DomainTraffic{
		{Domain: "example.com", Totals: analyticsRepo.TotalsResult},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats?domain=example.com", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "totals")
	assert.Contains(t, body, "by_domain")
}

func TestHandler_Distinct(t *testing.T) {
	h, analyticsRepo, _ := newTestHandler(t)
	analyticsRepo.DistinctResult = []string{"a", "b"}

	req := httptest.NewRequest(http.MethodGet, "/api/distinct/domain", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{"a", "b"}, body["values"])
}

func TestHandler_Distinct_MissingField(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/distinct/", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Links(t *testing.T) {
	h, _, links := newTestHandler(t)
	require.NoError(t, links.UpsertActive(context.Background(), "example.com", "https://example.com"))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["links"], 1)
}

func TestHandler_Panic_EmergencyRedirect(t *testing.T) {
	h := httpsvc.New(&httpsvc.Config{
		Logger: slogutil.NewDiscardLogger(),
		Addr:   "127.0.0.1:0",
		Engine: testEngine(t),
		// A nil refresher makes handleProcess's interface call to
		// Refresher.Refresh panic, exercising ServeHTTP's recovery wrapper.
		Refresher: nil,
		Analytics: &analyticsfake.Repository{},
		Links:     linkstorefake.New(),
		ErrColl:   testErrColl(),
	}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/process", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://useuapp.com/random", rec.Header().Get("Location"))
}
