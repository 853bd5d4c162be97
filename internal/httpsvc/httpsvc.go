// Package httpsvc is the HTTP front end of the redirect dispatcher: the
// dispatch catch-all of spec.md §4.2, the health and metrics endpoints, and
// the reporting API of spec.md §6.
package httpsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/caionorder/redirectd/internal/agdservice"
	"github.com/caionorder/redirectd/internal/analytics"
	"github.com/caionorder/redirectd/internal/dispatch"
	"github.com/caionorder/redirectd/internal/errcoll"
	"github.com/caionorder/redirectd/internal/linkstore"
	"github.com/caionorder/redirectd/internal/ranking"
	"github.com/caionorder/redirectd/internal/redircache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Refresher is the subset of [ranking.Store] the manual-refresh API
// endpoint needs.
type Refresher interface {
	Refresh(ctx context.Context) (err error)

	// BestLinkMap returns the current per-domain winners, for GET
	// /api/process to report back as its "data" field per spec.md §6.
	BestLinkMap() (m map[string]ranking.BestLinkEntry)
}

// Pinger is a dependency whose connectivity can be checked for the detailed
// health-check endpoint.
type Pinger interface {
	Ping(ctx context.Context) (err error)
}

// Config is the configuration structure for a *Service.
type Config struct {
	Logger *slog.Logger

	// Addr is the address the service listens on.
	Addr string

	// CORSOrigin is the value of Access-Control-Allow-Origin.  An empty
	// string disables CORS entirely.
	CORSOrigin string

	// Engine dispatches inbound redirect requests.
	Engine *dispatch.Engine

	// Refresher is invoked by the manual GET /api/process endpoint.
	Refresher Refresher

	// Analytics backs GET /api/stats and GET /api/distinct/{field}.
	Analytics analytics.Repository

	// Links backs GET /api/links.
	Links linkstore.Store

	// Cache is pinged by the detailed health check.
	Cache redircache.Client

	// Store is the other dependency pinged by the detailed health check;
	// nil when the Mongo-backed stores are unavailable (degraded startup,
	// spec.md §7's PermanentConfig).
	Store Pinger

	ErrColl errcoll.Interface

	// ReadHeaderTimeout bounds how long the server waits for request
	// headers.
	ReadHeaderTimeout time.Duration
}

// Service is the HTTP front end.  It implements [agdservice.Interface].
type Service struct {
	logger *slog.Logger
	srv    *http.Server
}

// Handler returns the service's composed [http.Handler], for tests that
// want to drive it with an [net/http/httptest.ResponseRecorder] instead of
// a bound listener.
func (svc *Service) Handler() (h http.Handler) {
	return svc.srv.Handler
}

// type check
var _ agdservice.Interface = (*Service)(nil)

// New returns a new *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	h := newHandler(c)

	var handler http.Handler = h
	if c.CORSOrigin != "" {
		handler = cors.New(cors.Options{
			AllowedOrigins: []string{c.CORSOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}).Handler(handler)
	}

	return &Service{
		logger: c.Logger,
		srv: &http.Server{
			Addr:              c.Addr,
			Handler:           handler,
			ErrorLog:          slog.NewLogLogger(c.Logger.Handler(), slog.LevelError),
			ReadHeaderTimeout: c.ReadHeaderTimeout,
		},
	}
}

// Start implements the [agdservice.Interface] interface for *Service.
func (svc *Service) Start(_ context.Context) (err error) {
	l, err := net.Listen("tcp", svc.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", svc.srv.Addr, err)
	}

	go func() {
		srvErr := svc.srv.Serve(l)
		if srvErr != nil && srvErr != http.ErrServerClosed {
			svc.logger.Error("serving http", slogutil.KeyError, srvErr)
		}
	}()

	svc.logger.Info("started", "addr", svc.srv.Addr)

	return nil
}

// Shutdown implements the [agdservice.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.srv.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutting down http service: %w", err)
	}

	svc.logger.InfoContext(ctx, "shut down successfully")

	return nil
}

// promHandler serves the Prometheus exposition format at GET /metrics.
var promHandler http.Handler = promhttp.Handler()
