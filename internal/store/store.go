// Package store owns the Postgres pool shared by the repositories.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/specialist-directory/db"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
)

var errNotInitialized = errors.New("store not initialized")

// Options tunes the pool. Zero values keep the pgx defaults.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	// AutoMigrate applies the embedded schema once the pool is up.
	AutoMigrate bool
	Logger      *logger.Logger
}

// Store is the directory's database handle.
type Store struct {
	pool    *pgxpool.Pool
	logger  *logger.Logger
	timeout time.Duration
}

// New opens the pool, pings it and optionally migrates. Every step shares
// one ConnTimeout budget.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "store")

	cfg, err := poolConfig(dbURL, opts)
	if err != nil {
		return nil, err
	}
	log.Info("opening pool",
		"max_conns", cfg.MaxConns, "min_conns", cfg.MinConns,
		"max_idle", cfg.MaxConnIdleTime, "max_life", cfg.MaxConnLifetime,
		"stmt_cache", opts.StatementCacheCapacity)

	setupCtx, cancel := withTimeout(ctx, opts.ConnTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(setupCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(setupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if opts.AutoMigrate {
		if err := db.Up(setupCtx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema up to date")
	}

	log.Info("database ready")
	return &Store{pool: pool, logger: log, timeout: opts.ConnTimeout}, nil
}

func poolConfig(dbURL string, opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if n := opts.StatementCacheCapacity; n > 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = n
	}
	return cfg, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (s *Store) ready() bool {
	return s != nil && s.pool != nil
}

// Close releases the pool. It is safe on a nil Store.
func (s *Store) Close() {
	if !s.ready() {
		return
	}
	s.logger.Info("closing pool")
	s.pool.Close()
}

// HealthCheck pings the database within ConnTimeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	if !s.ready() {
		return errNotInitialized
	}
	pingCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.pool.Ping(pingCtx)
}

// Pool returns the pool the repositories run on.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Stats returns pool counters for /healthz, or nil before New succeeds.
func (s *Store) Stats() *pgxpool.Stat {
	if !s.ready() {
		return nil
	}
	return s.pool.Stat()
}
