// Package app wires together the redirect dispatcher's components and runs
// the process until a termination signal arrives, adapted from the
// teacher's internal/cmd entry point.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"time"

	"github.com/AdguardTeam/golibs/netutil"
	"github.com/caionorder/redirectd/internal/agdservice"
	"github.com/caionorder/redirectd/internal/analytics"
	"github.com/caionorder/redirectd/internal/clickstore"
	"github.com/caionorder/redirectd/internal/config"
	"github.com/caionorder/redirectd/internal/dispatch"
	"github.com/caionorder/redirectd/internal/frontcache"
	"github.com/caionorder/redirectd/internal/httpsvc"
	"github.com/caionorder/redirectd/internal/linkstore"
	"github.com/caionorder/redirectd/internal/metrics"
	"github.com/caionorder/redirectd/internal/ranking"
	"github.com/caionorder/redirectd/internal/redircache"
	"github.com/caionorder/redirectd/internal/registry"
	"github.com/caionorder/redirectd/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// connectTimeout bounds every startup dependency dial.
const connectTimeout = 10 * time.Second

// Main is the program's entry point.  It panics if reading the environment or
// building a component fails.  It returns a non-zero status if a service fails
// to start or to shut down; a clean shutdown after a termination signal
// returns zero.
func Main() (status int) {
	env, err := config.Read()
	if err != nil {
		panic(fmt.Errorf("reading environment: %w", err))
	}

	logger := env.ConfigureLogs()

	errColl, err := env.BuildErrColl(logger)
	if err != nil {
		panic(fmt.Errorf("building error collector: %w", err))
	}

	metrics.SetUpGauge(version.Version(), version.CommitTime(), version.Branch(), version.Revision(), runtime.Version())

	reg := prometheus.DefaultRegisterer

	rankingMetrics, err := metrics.NewRanking("redirectd", reg)
	if err != nil {
		panic(fmt.Errorf("registering ranking metrics: %w", err))
	}

	redisKVMetrics, err := metrics.NewRedisKV("redirectd", reg)
	if err != nil {
		panic(fmt.Errorf("registering redis metrics: %w", err))
	}

	dispatchMetrics, err := metrics.NewDispatch("redirectd", reg)
	if err != nil {
		panic(fmt.Errorf("registering dispatch metrics: %w", err))
	}

	cacheClient, err := newRedisClient(env, redisKVMetrics)
	if err != nil {
		panic(fmt.Errorf("building redis client: %w", err))
	}

	front := frontcache.New(cacheClient)
	domainRegistry := registry.Default()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	mongoClient, mongoErr := connectMongo(ctx, env.MongoURI)
	cancel()

	analyticsRepo, links, clicks := buildStores(mongoClient, mongoErr, env, logger)

	rankingStore := ranking.New(&ranking.Config{
		Logger:    logger.With("component", "ranking"),
		Analytics: analyticsRepo,
		Cache:     cacheClient,
		Links:     links,
		ErrColl:   errColl,
		Registry:  domainRegistry,
		Metrics:   rankingMetrics,
	})

	engine := dispatch.New(&dispatch.Config{
		Logger:   logger.With("component", "dispatch"),
		Cache:    cacheClient,
		Front:    front,
		Clicks:   clicks,
		Registry: domainRegistry,
		ErrColl:  errColl,
		Metrics:  dispatchMetrics,
	})

	var storePinger httpsvc.Pinger
	if mongoClient != nil {
		storePinger = mongoPinger{client: mongoClient}
	}

	httpSvc := httpsvc.New(&httpsvc.Config{
		Logger:            logger.With("component", "http"),
		Addr:              net.JoinHostPort(env.ListenAddr, fmt.Sprint(env.ListenPort)),
		CORSOrigin:        env.CORSOrigin,
		Engine:            engine,
		Refresher:         rankingStore,
		Analytics:         analytics.NewCachedRepository(analyticsRepo),
		Links:             links,
		Cache:             cacheClient,
		Store:             storePinger,
		ErrColl:           errColl,
		ReadHeaderTimeout: connectTimeout,
	})

	var refreshWorker agdservice.Interface = agdservice.Empty{}
	if env.IsClusterPrimary() {
		cronWorker, cronErr := newCronRefreshWorker(env, logger, rankingStore)
		if cronErr != nil {
			panic(fmt.Errorf("building cron refresh worker: %w", cronErr))
		}

		refreshWorker = cronWorker
	}

	crashRptr, err := newCrashReporter(&crashReporterConfig{
		logger:  logger.With("component", "crash_reporter"),
		dirPath: env.CrashDir,
		enabled: env.CrashDir != "",
	})
	if err != nil {
		panic(fmt.Errorf("building crash reporter: %w", err))
	}

	return run(logger, crashRptr, httpSvc, refreshWorker)
}

// mongoPinger adapts *mongo.Client to [httpsvc.Pinger].
type mongoPinger struct {
	client *mongo.Client
}

// Ping implements the [httpsvc.Pinger] interface for mongoPinger.
func (p mongoPinger) Ping(ctx context.Context) (err error) {
	return p.client.Ping(ctx, nil)
}

// connectMongo connects to uri and pings the resulting client once.  A
// connection failure is not fatal: the caller falls back to degraded-mode
// stores, per spec.md §7's PermanentConfig.
func connectMongo(ctx context.Context, uri string) (client *mongo.Client, err error) {
	client, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pinging: %w", err)
	}

	return client, nil
}

// buildStores returns the Mongo-backed analytics repository, link store, and
// click recorder, or their degraded-mode counterparts if mongoErr is
// non-nil.
func buildStores(
	client *mongo.Client,
	mongoErr error,
	env *config.Environment,
	logger *slog.Logger,
) (repo analytics.Repository, links linkstore.Store, clicks clickstore.Recorder) {
	if mongoErr != nil {
		logger.Warn("connecting to mongo; starting in degraded mode", "err", mongoErr)

		return analytics.Empty{}, linkstore.Empty{}, clickstore.EmptyRecorder{}
	}

	db := client.Database(env.MongoDatabase)

	return analytics.NewMongoRepository(db.Collection("redirects_analytics")),
		linkstore.NewMongoStore(db.Collection("redirects_links")),
		clickstore.NewMongoRecorder(db.Collection("redirects_clicks"))
}

// newRedisClient builds the shared-cache client from env.
func newRedisClient(env *config.Environment, m redircache.Metrics) (c redircache.Client, err error) {
	host, portStr, err := net.SplitHostPort(env.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing redis addr %q: %w", env.RedisAddr, err)
	}

	var port uint64
	_, err = fmt.Sscanf(portStr, "%d", &port)
	if err != nil {
		return nil, fmt.Errorf("parsing redis port %q: %w", portStr, err)
	}

	return redircache.NewRedisClient(&redircache.RedisClientConfig{
		Metrics:     m,
		Addr:        &netutil.HostPort{Host: host, Port: uint16(port)},
		MaxActive:   env.RedisMaxConns,
		MaxIdle:     env.RedisMaxIdle,
		IdleTimeout: 5 * time.Minute,
	}), nil
}

// newCronRefreshWorker builds the ranking refresher's scheduler.
func newCronRefreshWorker(
	env *config.Environment,
	logger *slog.Logger,
	store *ranking.Store,
) (w *agdservice.CronRefreshWorker, err error) {
	return agdservice.NewCronRefreshWorker(&agdservice.CronRefreshWorkerConfig{
		Context: func() (ctx context.Context, cancel context.CancelFunc) {
			return context.WithTimeout(context.Background(), connectTimeout)
		},
		Refresher: store,
		Logger:    logger,
		Schedule:  env.RefreshCronExpr,
	})
}
