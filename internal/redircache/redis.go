package redircache

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/gomodule/redigo/redis"
)

// Redis commands and parameters, ported from the teacher's
// internal/remotekv/rediskv.RedisKV, extended with the counter and lifecycle
// commands spec.md §6 names that the teacher's GET/SET-only client lacks.
const (
	cmdGET    = "GET"
	cmdSET    = "SET"
	cmdINCR   = "INCR"
	cmdEXPIRE = "EXPIRE"
	cmdDEL    = "DEL"
	cmdPING   = "PING"
	cmdROLE   = "ROLE"

	paramPX = "PX"

	requiredRole = "master"
)

// Metrics is used for the collection of the Redis client statistics.
type Metrics interface {
	// UpdateMetrics updates the total number of active connections and
	// increments the total number of errors if necessary.
	UpdateMetrics(ctx context.Context, activeConns uint, isSuccess bool)
}

// EmptyMetrics is a [Metrics] implementation that does nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// UpdateMetrics implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) UpdateMetrics(_ context.Context, _ uint, _ bool) {}

// RedisClient is a [Client] implementation backed by a pooled Redis
// connection, ported from the teacher's internal/remotekv/rediskv.RedisKV.
type RedisClient struct {
	metrics Metrics
	pool    *redis.Pool
}

// RedisClientConfig is the configuration for a *RedisClient.  Addr must not
// be nil; Metrics defaults to [EmptyMetrics].
type RedisClientConfig struct {
	// Metrics is used for the collection of the Redis client statistics.  If
	// nil, [EmptyMetrics] is used.
	Metrics Metrics

	// Addr is the address of the Redis server.
	Addr *netutil.HostPort

	// MaxActive is the maximum number of connections allocated by the
	// connection pool at a given time.  Zero means no limit.
	MaxActive int

	// MaxIdle is the maximum number of idle connections in the pool.  Zero
	// means no idle connection is kept.
	MaxIdle int

	// IdleTimeout is the time after which a remaining idle connection is
	// closed.
	IdleTimeout time.Duration
}

// NewRedisClient returns a new *RedisClient.  c must not be nil.
func NewRedisClient(c *RedisClientConfig) (rc *RedisClient) {
	metrics := c.Metrics
	if metrics == nil {
		metrics = EmptyMetrics{}
	}

	return &RedisClient{
		metrics: metrics,
		pool: &redis.Pool{
			DialContext:  dialNoDNSCache(c.Addr),
			TestOnBorrow: checkConnRole,
			MaxIdle:      c.MaxIdle,
			MaxActive:    c.MaxActive,
			IdleTimeout:  c.IdleTimeout,
			Wait:         true,
		},
	}
}

// dialNoDNSCache returns a dial function that resolves addr using a resolver
// that ignores DNS TTL values, dialing the first returned address.  Ported
// verbatim in behavior from the teacher's rediskv.NewRedisKV.
func dialNoDNSCache(addr *netutil.HostPort) (dial func(ctx context.Context) (redis.Conn, error)) {
	return func(ctx context.Context) (conn redis.Conn, err error) {
		r := &net.Resolver{
			PreferGo: true,
		}

		ips, err := r.LookupNetIP(ctx, "ip", addr.Host)
		if err != nil {
			return nil, fmt.Errorf("looking up: %w", err)
		} else if len(ips) == 0 {
			panic(errors.Error(
				"stdlib contract violation: net.Resolver.LookupNetIP: 0 ips with no error",
			))
		}

		addrPort := netip.AddrPortFrom(ips[0], addr.Port)
		conn, err = redis.DialContext(ctx, "tcp", addrPort.String())
		if err != nil {
			return nil, fmt.Errorf("dialing first of %q and port %d: %w", ips, addr.Port, err)
		}

		return conn, nil
	}
}

// checkConnRole returns an error if the connection is invalid or the server
// is not a master.
func checkConnRole(c redis.Conn, _ time.Time) (err error) {
	defer func() { err = errors.Annotate(err, "testing conn: %w") }()

	val, err := redis.Strings(c.Do(cmdROLE))
	if err != nil {
		return fmt.Errorf("role command: %w", err)
	}

	if len(val) < 1 {
		return fmt.Errorf("want at least one value, got %d", len(val))
	}

	if role := val[0]; role != requiredRole {
		return fmt.Errorf("want role %q, got %q", requiredRole, role)
	}

	return nil
}

// type check
var _ Client = (*RedisClient)(nil)

// withConn runs f with a pooled connection, reporting metrics and
// annotating errors the way the teacher's RedisKV methods do.
func (rc *RedisClient) withConn(ctx context.Context, f func(redis.Conn) error) (err error) {
	defer func() {
		// #nosec G115 -- Assume that pool.ActiveCount is always non-negative.
		rc.metrics.UpdateMetrics(ctx, uint(rc.pool.ActiveCount()), err == nil)
	}()

	c, err := rc.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, c.Close()) }()

	return f(c)
}

// Get implements the [Client] interface for *RedisClient.
func (rc *RedisClient) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	err = rc.withConn(ctx, func(c redis.Conn) (err error) {
		val, err = redis.Bytes(c.Do(cmdGET, key))
		switch {
		case err == nil:
			ok = true

			return nil
		case errors.Is(err, redis.ErrNil):
			return nil
		default:
			return fmt.Errorf("get command: %w", err)
		}
	})
	if err != nil {
		return nil, false, errors.Annotate(err, "getting %q: %w", key)
	}

	return val, ok, nil
}

// Set implements the [Client] interface for *RedisClient.
func (rc *RedisClient) Set(ctx context.Context, key string, val []byte, ttl time.Duration) (err error) {
	err = rc.withConn(ctx, func(c redis.Conn) (err error) {
		var dErr error
		if ttl > 0 {
			_, dErr = c.Do(cmdSET, key, val, paramPX, ttl.Milliseconds())
		} else {
			_, dErr = c.Do(cmdSET, key, val)
		}

		if dErr != nil {
			return fmt.Errorf("set command: %w", dErr)
		}

		return nil
	})

	return errors.Annotate(err, "setting %q: %w", key)
}

// Incr implements the [Client] interface for *RedisClient.
func (rc *RedisClient) Incr(ctx context.Context, key string) (n int64, err error) {
	err = rc.withConn(ctx, func(c redis.Conn) (err error) {
		n, err = redis.Int64(c.Do(cmdINCR, key))
		if err != nil {
			return fmt.Errorf("incr command: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, errors.Annotate(err, "incrementing %q: %w", key)
	}

	return n, nil
}

// Expire implements the [Client] interface for *RedisClient.
func (rc *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) (err error) {
	err = rc.withConn(ctx, func(c redis.Conn) (err error) {
		seconds := int64(ttl / time.Second)
		if seconds < 1 {
			seconds = 1
		}

		_, err = c.Do(cmdEXPIRE, key, seconds)
		if err != nil {
			return fmt.Errorf("expire command: %w", err)
		}

		return nil
	})

	return errors.Annotate(err, "expiring %q: %w", key)
}

// Del implements the [Client] interface for *RedisClient.
func (rc *RedisClient) Del(ctx context.Context, key string) (err error) {
	err = rc.withConn(ctx, func(c redis.Conn) (err error) {
		_, err = c.Do(cmdDEL, key)
		if err != nil {
			return fmt.Errorf("del command: %w", err)
		}

		return nil
	})

	return errors.Annotate(err, "deleting %q: %w", key)
}

// Ping implements the [Client] interface for *RedisClient.
func (rc *RedisClient) Ping(ctx context.Context) (err error) {
	err = rc.withConn(ctx, func(c redis.Conn) (err error) {
		_, err = c.Do(cmdPING)
		if err != nil {
			return fmt.Errorf("ping command: %w", err)
		}

		return nil
	})

	return errors.Annotate(err, "pinging: %w")
}
