// Package db opens the shared Postgres pool.
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDSN is returned by Open when DATABASE_URL is unset. Services that can
// run without Postgres outside production check for it.
var ErrNoDSN = errors.New("DATABASE_URL is required")

// PoolOptions sizes the pool. Zero fields take DB_MAX_CONNS / DB_MIN_CONNS
// from the environment, then 10 / 1.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	PingTimeout time.Duration
}

// Open opens a pool on DATABASE_URL.
func Open(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return nil, ErrNoDSN
	}
	return OpenDSN(ctx, dsn, PoolOptions{})
}

// OpenDSN opens a pool and pings it once so a bad DSN fails at boot.
func OpenDSN(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	opts, err = opts.withDefaults()
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (o PoolOptions) withDefaults() (PoolOptions, error) {
	var err error
	if o.MaxConns == 0 {
		if o.MaxConns, err = envInt32("DB_MAX_CONNS", 10); err != nil {
			return o, err
		}
	}
	if o.MinConns == 0 {
		if o.MinConns, err = envInt32("DB_MIN_CONNS", 1); err != nil {
			return o, err
		}
	}
	if o.MinConns > o.MaxConns {
		return o, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", o.MinConns, o.MaxConns)
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o, nil
}

func envInt32(key string, fallback int32) (int32, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid value %q", key, v)
	}
	return int32(n), nil
}
