package httpsvc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/caionorder/redirectd/internal/analytics"
	"github.com/caionorder/redirectd/internal/dispatch"
	"github.com/caionorder/redirectd/internal/errcoll"
	"github.com/caionorder/redirectd/internal/linkstore"
	"github.com/caionorder/redirectd/internal/ranking"
)

// handler is the root http.Handler, wrapping the routed mux with a panic
// recovery layer that converts any handler panic into the same emergency
// redirect the dispatch engine itself falls back to, matching spec.md §7's
// "dispatch endpoint must always return a redirect, never a 5xx".
type handler struct {
	logger *slog.Logger

	mux *http.ServeMux

	engine    *dispatch.Engine
	refresher Refresher
	analytics analytics.Repository
	links     linkstore.Store
	cache     Pinger
	store     Pinger
	errColl   errcoll.Interface
}

func newHandler(c *Config) (h *handler) {
	h = &handler{
		logger:    c.Logger,
		engine:    c.Engine,
		refresher: c.Refresher,
		analytics: c.Analytics,
		links:     c.Links,
		cache:     c.Cache,
		store:     c.Store,
		errColl:   c.ErrColl,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/health/detailed", h.handleHealthDetailed)
	mux.HandleFunc("/ping", h.handleHealth)
	mux.Handle("/metrics", promHandler)
	mux.HandleFunc("/api/process", h.handleProcess)
	mux.HandleFunc("/api/stats", h.handleStats)
	mux.HandleFunc("/api/distinct/", h.handleDistinct)
	mux.HandleFunc("/api/links", h.handleLinks)
	mux.HandleFunc("/", h.handleDispatch)

	h.mux = mux

	return h
}

// type check
var _ http.Handler = (*handler)(nil)

// ServeHTTP implements the http.Handler interface for *handler.  A panic
// anywhere downstream is converted into the dispatch engine's emergency
// redirect instead of crashing the process or surfacing a 5xx.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx := r.Context()
			h.logger.ErrorContext(ctx, "panic", "value", rec)

			http.Redirect(w, r, "https://useuapp.com/random", http.StatusFound)
		}
	}()

	h.mux.ServeHTTP(w, r)
}

func (h *handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	req := &dispatch.Request{
		Path:         r.URL.Path,
		RawURL:       r.URL.String(),
		ForwardedFor: r.Header.Get(httphdr.XForwardedFor),
		RemoteAddr:   r.RemoteAddr,
		Query:        r.URL.Query(),
	}

	res := h.engine.Dispatch(r.Context(), req)
	if res.Status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	http.Redirect(w, r, res.Location, res.Status)
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(httphdr.ContentType, "text/plain")
	w.WriteHeader(http.StatusOK)

	_, _ = io.WriteString(w, "OK\n")
}

// healthDependency is one entry of the detailed health-check response.
type healthDependency struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	Err  string `json:"error,omitempty"`
}

// handleHealthDetailed pings every external dependency concurrently and
// reports their individual status, matching the teacher's
// parallel-dependency-probe idiom used at startup.
func (h *handler) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deps := []struct {
		name string
		p    Pinger
	}{
		{"cache", h.cache},
		{"store", h.store},
	}

	results := make([]healthDependency, len(deps))

	var wg sync.WaitGroup
	for i, d := range deps {
		wg.Add(1)

		go func(i int, name string, p Pinger) {
			defer wg.Done()

			res := healthDependency{Name: name, OK: true}
			if p == nil {
				res.OK = false
				res.Err = "not configured"
			} else if err := p.Ping(ctx); err != nil {
				res.OK = false
				res.Err = err.Error()
			}

			results[i] = res
		}(i, d.name, d.p)
	}

	wg.Wait()

	status := http.StatusOK
	for _, res := range results {
		if !res.OK {
			status = http.StatusServiceUnavailable

			break
		}
	}

	w.Header().Set(httphdr.ContentType, "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]any{"dependencies": results})
}

// processResponse is the response body of GET /api/process, per spec.md §6.
type processResponse struct {
	Success bool                             `json:"success"`
	Message string                           `json:"message"`
	Data    map[string]ranking.BestLinkEntry `json:"data"`
}

// handleProcess triggers an out-of-band ranking refresh, for operators who
// need the ranking updated before the next cron tick, and reports back the
// resulting best-link map so callers can verify the refresh is idempotent.
func (h *handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	ctx := r.Context()
	w.Header().Set(httphdr.ContentType, "application/json")

	err := h.refresher.Refresh(ctx)
	if err != nil {
		errcoll.Collect(ctx, h.errColl, h.logger, "manual ranking refresh", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(processResponse{
			Success: false,
			Message: err.Error(),
		})

		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(processResponse{
		Success: true,
		Message: "ranking refreshed",
		Data:    h.refresher.BestLinkMap(),
	})
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	totals, byDomain, err := h.analytics.Totals(ctx, analyticsQueryFromParams(q))
	if err != nil {
		errcoll.Collect(ctx, h.errColl, h.logger, "loading stats", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set(httphdr.ContentType, "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"totals":    totals,
		"by_domain": byDomain,
	})
}

func (h *handler) handleDistinct(w http.ResponseWriter, r *http.Request) {
	field := strings.TrimPrefix(r.URL.Path, "/api/distinct/")
	if field == "" {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	ctx := r.Context()
	values, err := h.analytics.Distinct(ctx, field)
	if err != nil {
		errcoll.Collect(ctx, h.errColl, h.logger, "loading distinct values", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set(httphdr.ContentType, "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"values": values})
}

func (h *handler) handleLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.links.ListActive(ctx)
	if err != nil {
		errcoll.Collect(ctx, h.errColl, h.logger, "loading active links", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set(httphdr.ContentType, "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"links": records})
}

// analyticsQueryFromParams builds an analytics.Query from the request's
// start, end, and domain query parameters.  Empty values leave the
// corresponding Query field zero, which both repository implementations
// treat as "no filter".
func analyticsQueryFromParams(q map[string][]string) (query analytics.Query) {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}

		return ""
	}

	query.Start = get("start")
	query.End = get("end")
	if d := get("domain"); d != "" {
		query.Domains = []string{d}
	}

	return query
}
