package guard

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper periodically prunes expired records until ctx is done.
func StartSweeper(ctx context.Context, g *DuplicateGuard, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Dedup sweeper started", "interval", interval, "window", g.Window())

		for {
			select {
			case <-ticker.C:
				removed, err := g.Prune(ctx)
				if err != nil {
					slog.Error("Dedup sweeper failed to prune records", "error", err)
					continue
				}
				if removed > 0 {
					slog.Debug("Dedup sweeper pruned records", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Dedup sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
