package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"victory-readmodel/internal/observability"
	"victory-readmodel/internal/storage"
)

const applicationName = "victory-readmodel"

// Pool is the archive connection pool shared by the Postgres stores.
type Pool struct {
	*pgxpool.Pool
	metrics *observability.Metrics
}

// PoolOption configures NewPool.
type PoolOption func(*pgxpool.Config, *Pool)

// WithMaxConns caps the number of open connections.
func WithMaxConns(n int32) PoolOption {
	return func(cfg *pgxpool.Config, _ *Pool) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// WithConnLifetime recycles connections older than d.
func WithConnLifetime(d time.Duration) PoolOption {
	return func(cfg *pgxpool.Config, _ *Pool) {
		if d > 0 {
			cfg.MaxConnLifetime = d
		}
	}
}

// WithMetrics records latency and failures of every store query on the pool.
func WithMetrics(m *observability.Metrics) PoolOption {
	return func(_ *pgxpool.Config, p *Pool) {
		p.metrics = m
	}
}

// NewPool connects to the archive and pings it. Connections report
// application_name unless the DSN sets one.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	p := &Pool{}
	for _, opt := range opts {
		opt(cfg, p)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", cfg.ConnConfig.Host, err)
	}

	p.Pool = pool
	return p, nil
}

// observe records one store operation. Duplicate and not-found results are
// expected outcomes, not query errors.
func (p *Pool) observe(operation string, start time.Time, err error) {
	if errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	p.metrics.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), err)
}

// SQLSTATE codes mapped onto storage sentinels.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgInvalidText     = "22P02"
)

// storageError maps driver errors onto storage sentinels and wraps anything
// else with op.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return storage.ErrDuplicateKey
		case pgCheckViolation, pgInvalidText:
			return fmt.Errorf("%s: %w: %s", op, storage.ErrInvalidInput, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
