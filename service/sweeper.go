package service

import (
	"context"
	"log/slog"
	"time"
)

// Expirer deletes batches older than a cutoff. Generator implements it.
type Expirer interface {
	Expire(ctx context.Context, cutoff time.Time) (int, error)
}

// StartSweepLoop runs a goroutine that, every interval, removes batches
// older than retention. A retention of zero disables the loop. The loop
// stops when ctx is cancelled.
func StartSweepLoop(ctx context.Context, exp Expirer, interval, retention time.Duration, log *slog.Logger) {
	if retention <= 0 {
		log.Info("batch retention disabled")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go sweepLoop(ctx, exp, interval, retention, log)
}

func sweepLoop(ctx context.Context, exp Expirer, interval, retention time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweep loop stopped")
			return
		case <-ticker.C:
			sweepOnce(ctx, exp, retention, log)
		}
	}
}

func sweepOnce(ctx context.Context, exp Expirer, retention time.Duration, log *slog.Logger) {
	n, err := exp.Expire(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Warn("sweep failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("expired batches removed", "count", n)
	}
}
