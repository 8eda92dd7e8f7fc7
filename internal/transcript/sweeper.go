package transcript

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/convo-coach/internal/domain"
)

// EvictCallback is called for every buffer removed by the idle sweeper.
type EvictCallback func(key domain.SessionKey)

// StartIdleSweeper runs a background goroutine that periodically drops
// buffers idle for longer than ttl. It stops when ctx is cancelled.
func StartIdleSweeper(ctx context.Context, store *Store, ttl, interval time.Duration, onEvict EvictCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Idle buffer sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepIdle(store, ttl, onEvict)
			case <-ctx.Done():
				slog.Info("Idle buffer sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepIdle(store *Store, ttl time.Duration, onEvict EvictCallback) int {
	evicted := store.EvictIdle(ttl)
	if len(evicted) == 0 {
		return 0
	}
	for _, key := range evicted {
		slog.Info("Evicted idle transcript buffer", "user_id", key.UserID, "session_id", key.SessionID)
		if onEvict != nil {
			onEvict(key)
		}
	}
	return len(evicted)
}
