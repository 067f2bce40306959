package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultExpiry is how long cached initiation responses are replayed.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys removes records older than expiry and returns how many
// were deleted.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("failed to cleanup old idempotency keys", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.Info("cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// RunPeriodicCleanup runs CleanupOldKeys immediately and then every interval
// until ctx is cancelled. It blocks; run it in a goroutine.
//
//	go idempotency.RunPeriodicCleanup(ctx, repo, time.Hour, idempotency.DefaultExpiry)
func RunPeriodicCleanup(ctx context.Context, repo Repository, interval, expiry time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(repo, expiry); err != nil {
		slog.Error("initial cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(repo, expiry); err != nil {
				slog.Error("periodic cleanup failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("stopping periodic cleanup")
			return
		}
	}
}
