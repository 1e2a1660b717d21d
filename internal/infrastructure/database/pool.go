package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/infrastructure/config"
)

// Pool wraps a pgx connection pool with the settings the outreach
// workers depend on (short statement timeouts, UTC session time).
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPool(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "outreach_backend",
		"timezone":          "UTC",
		"lock_timeout":      "10s",
		"statement_timeout": "30s",
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection pool initialized",
		zap.Int32("max_connections", poolConfig.MaxConns))

	return &Pool{pool: pool, logger: logger}, nil
}

func (p *Pool) Pgx() *pgxpool.Pool {
	return p.pool
}

// Transaction executes fn within a database transaction.
func (p *Pool) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, fn)
}

func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Pool) Close() {
	p.pool.Close()
	p.logger.Info("database connection pool closed")
}
