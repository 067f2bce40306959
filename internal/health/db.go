// Package health provides health checks for the payment service's
// dependencies.
package health

import (
	"context"
	"fmt"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker checks database connectivity.
type DBChecker struct {
	db Pinger
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db Pinger) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
