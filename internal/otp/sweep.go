package otp

import (
	"context"
	"log/slog"
	"time"
)

// RunPeriodicSweep calls SweepExpired every interval until ctx is cancelled.
func RunPeriodicSweep(ctx context.Context, store Store, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("otp sweep started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("otp sweep stopped")
			return
		case <-ticker.C:
			removed, err := store.SweepExpired(ctx)
			if err != nil {
				logger.Error("otp sweep failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				logger.Debug("otp sweep removed expired entries", slog.Int("removed", removed))
			}
		}
	}
}
