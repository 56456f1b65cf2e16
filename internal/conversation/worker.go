package conversation

import (
	"context"
	"log/slog"
	"time"
)

const defaultTTLWorkerInterval = time.Minute

// SessionCleaner removes persisted conversations idle for longer than ttl.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// StartTTLWorker runs a background goroutine that periodically drops idle
// sessions from memory and from the store.
func StartTTLWorker(ctx context.Context, registry *Registry, cleaner SessionCleaner, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = defaultTTLWorkerInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				cleanupExpiredSessions(ctx, registry, cleaner, ttl)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func cleanupExpiredSessions(ctx context.Context, registry *Registry, cleaner SessionCleaner, ttl time.Duration) {
	if removed := registry.Sweep(ttl); removed > 0 {
		slog.Info("TTL worker dropped idle sessions", "count", removed)
	}
	if cleaner == nil {
		return
	}

	deleted, err := cleaner.CleanupExpiredSessions(ctx, ttl)
	if err != nil {
		// Context cancellation during shutdown is not worth an error.
		if ctx.Err() != nil {
			slog.Debug("TTL worker: context canceled during cleanup", "error", err)
			return
		}
		slog.Error("TTL worker failed to cleanup expired conversations", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("TTL worker cleaned up expired conversations", "count", deleted)
	}
}
