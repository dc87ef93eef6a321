// Package postgres owns the PostgreSQL connection pool for the admin service.
//
// The pool is an explicitly constructed, dependency-injected resource handle:
// the application builds one Client at startup, hands it to the store layer,
// and closes it on shutdown. Tests can build as many isolated Clients as they
// need. There is no package-level singleton.
//
// Scoped acquisition is the only way to use a connection: WithConn acquires,
// runs the caller's function, and releases on every exit path. A connection
// left with a failed transaction after an error is rolled back (or discarded
// when rollback fails) before it goes back to the pool, so a later borrower
// never inherits broken transactional state.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rukoai/ruko-admin/internal/config"
	"github.com/rukoai/ruko-admin/internal/log"
)

// ErrNotInitialized indicates an operation was attempted without a live pool.
var ErrNotInitialized = errors.New("connection pool not initialized")

const (
	// maxConnLifetime bounds how long a single connection is reused.
	maxConnLifetime = 30 * time.Minute

	// maxConnIdleTime closes connections idle beyond this duration.
	maxConnIdleTime = 5 * time.Minute

	// healthCheckPeriod is the background health check interval of the pool.
	healthCheckPeriod = 1 * time.Minute

	// rollbackTimeout bounds the best-effort rollback on a dirty connection.
	rollbackTimeout = 5 * time.Second
)

// Client wraps a pgx connection pool with the service's lifecycle rules.
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a connection pool from configuration and verifies connectivity
// with a bounded ping. The caller owns the returned Client and must call
// Close on shutdown.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MinConns = int32(cfg.PoolMinConns)
	poolCfg.MaxConns = int32(cfg.PoolMaxConns)
	poolCfg.MaxConnLifetime = maxConnLifetime
	poolCfg.MaxConnIdleTime = maxConnIdleTime
	poolCfg.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, time.Duration(cfg.PostgresConnectTimeout)*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("database connection pool initialized",
		"host", cfg.PostgresHost,
		"database", cfg.PostgresDBName,
		"min_conns", cfg.PoolMinConns,
		"max_conns", cfg.PoolMaxConns)

	return &Client{pool: pool, logger: logger}, nil
}

// NewFromPool wraps an existing pool. Used by tests that manage their own
// container-backed pool.
func NewFromPool(pool *pgxpool.Pool, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{pool: pool, logger: logger}
}

// WithConn acquires a connection, runs fn, and releases the connection on
// every exit path, including panics. If fn leaves the connection inside a
// transaction (failed or not), the transaction is rolled back before release;
// if rollback itself fails the connection is discarded instead of returned.
func (c *Client) WithConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	if c == nil || c.pool == nil {
		return ErrNotInitialized
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}

	defer func() {
		c.cleanConn(conn)
		conn.Release()
	}()

	return fn(conn)
}

// cleanConn rolls back any transaction still open on the connection.
// Secondary failures are logged and swallowed so the caller's primary error
// is what propagates; a connection that cannot be cleaned is closed, which
// makes Release destroy it instead of pooling it.
func (c *Client) cleanConn(conn *pgxpool.Conn) {
	pgConn := conn.Conn().PgConn()
	if pgConn.IsClosed() || pgConn.TxStatus() == 'I' {
		return
	}

	rbCtx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()

	if _, err := conn.Exec(rbCtx, "ROLLBACK"); err != nil {
		c.logger.Warn("rollback on release failed, discarding connection", "error", err)
		_ = conn.Conn().Close(rbCtx)
	}
}

// Ping verifies database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.pool == nil {
		return ErrNotInitialized
	}
	return c.pool.Ping(ctx)
}

// Stat returns pool statistics. Returns nil when the pool is not initialized.
func (c *Client) Stat() *pgxpool.Stat {
	if c == nil || c.pool == nil {
		return nil
	}
	return c.pool.Stat()
}

// Close drains and closes every connection. The Client must not be used
// afterwards; build a new one to reconnect.
func (c *Client) Close() {
	if c == nil || c.pool == nil {
		return
	}
	c.pool.Close()
	c.logger.Info("database connection pool closed")
}
