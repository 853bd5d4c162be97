// Package config reads and validates the redirect dispatcher's environment
// configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/caarlos0/env/v7"
	"github.com/caionorder/redirectd/internal/errcoll"
	"github.com/getsentry/sentry-go"
)

// strictBool is a boolean environment value that only accepts the literal
// single-character values "0" and "1".  Ported from the teacher's
// internal/cmd/env.go, which uses the same type for similarly strict
// environment switches.
type strictBool bool

// UnmarshalText implements the [encoding.TextUnmarshaler] interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	if len(b) != 1 {
		return fmt.Errorf("bad strict bool value %q", b)
	}

	switch b[0] {
	case '0':
		*sb = false
	case '1':
		*sb = true
	default:
		return fmt.Errorf("bad strict bool value %q", b)
	}

	return nil
}

// Environment is the full set of recognized environment variables.
type Environment struct {
	MongoURI      string `env:"MONGO_URI,required"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"redirectd"`

	RedisAddr     string `env:"REDIS_ADDR,required"`
	RedisMaxIdle  int    `env:"REDIS_MAX_IDLE" envDefault:"8"`
	RedisMaxConns int    `env:"REDIS_MAX_ACTIVE" envDefault:"32"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:"0.0.0.0"`
	ListenPort uint16 `env:"LISTEN_PORT" envDefault:"8080"`

	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	RefreshCronExpr string `env:"REFRESH_CRON" envDefault:"30 * * * *"`

	ClusterEnabled strictBool `env:"CLUSTER_ENABLED" envDefault:"0"`
	ClusterPrimary strictBool `env:"CLUSTER_PRIMARY" envDefault:"1"`

	SentryDSN string `env:"SENTRY_DSN" envDefault:"stderr"`

	LogVerbose strictBool `env:"LOG_VERBOSE" envDefault:"0"`

	// CrashDir, if set, enables a crash reporter that writes Go runtime
	// crash and unhandled panic output to a file in this directory.
	CrashDir string `env:"CRASH_DIR" envDefault:""`
}

// Read parses the process environment into an *Environment.
func Read() (env_ *Environment, err error) {
	env_ = &Environment{}
	err = env.Parse(env_)
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	return env_, nil
}

// IsClusterPrimary reports whether this process is the elected primary
// responsible for running the ranking refresher, per spec.md's
// cluster-manager-designated election model.  A non-clustered deployment is
// always primary.
func (e *Environment) IsClusterPrimary() (ok bool) {
	return !bool(e.ClusterEnabled) || bool(e.ClusterPrimary)
}

// ConfigureLogs builds the process-wide structured logger, mirroring the
// teacher's internal/cmd/env.go configureLogs.
func (e *Environment) ConfigureLogs() (l *slog.Logger) {
	return slogutil.New(&slogutil.Config{
		Output:       os.Stdout,
		Format:       slogutil.FormatAdGuardLegacy,
		AddTimestamp: true,
		Verbose:      bool(e.LogVerbose),
	})
}

// BuildErrColl builds the error collector described by e.SentryDSN, mirroring
// the teacher's internal/cmd/env.go buildErrColl: "stderr" selects a
// stderr-writer fallback, anything else is parsed as a Sentry DSN.
func (e *Environment) BuildErrColl(baseLogger *slog.Logger) (ec errcoll.Interface, err error) {
	if e.SentryDSN == "stderr" {
		return errcoll.NewWriterCollector(os.Stderr, baseLogger), nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: e.SentryDSN,
	})
	if err != nil {
		return nil, errors.Annotate(err, "creating sentry client: %w")
	}

	return errcoll.NewSentryCollector(client), nil
}
