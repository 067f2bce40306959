// Package db opens the PostgreSQL connection pool used by the payment
// repositories.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

// ErrMissingURL is returned when no connection string is configured.
var ErrMissingURL = errors.New("database url is required")

// PoolConfig bounds the connection pool and the startup connect retries.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectTimeout is the total time spent retrying the first ping.
	ConnectTimeout time.Duration
}

// DefaultPoolConfig returns pool settings sized for a single API instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnectTimeout:  30 * time.Second,
	}
}

// Open creates a connection pool and waits until the database answers a
// ping, retrying with exponential backoff for up to cfg.ConnectTimeout.
// Containers commonly start the API before PostgreSQL accepts connections.
func Open(ctx context.Context, url string, cfg PoolConfig, logger *slog.Logger) (*sql.DB, error) {
	if url == "" {
		return nil, ErrMissingURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxElapsedTime = cfg.ConnectTimeout

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("database not ready, retrying", "error", err, "retry_in", next)
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(exp, ctx), notify); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
