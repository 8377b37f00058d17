package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/storefront/internal/metrics"
	"github.com/ErlanBelekov/storefront/internal/repository"
)

const reapBatchSize = 100

// Reaper hands back events whose notifier crashed or was killed while
// holding the claim.
type Reaper struct {
	events       repository.EventRepository
	logger       *slog.Logger
	interval     time.Duration
	claimTimeout time.Duration
	now          func() time.Time
}

func NewReaper(events repository.EventRepository, logger *slog.Logger, interval, claimTimeout time.Duration) *Reaper {
	return &Reaper{
		events:       events,
		logger:       logger.With("component", "reaper"),
		interval:     interval,
		claimTimeout: claimTimeout,
		now:          time.Now,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "claim_timeout", r.claimTimeout)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	staleCutoff := r.now().Add(-r.claimTimeout)

	requeued, err := r.events.RequeueStale(ctx, staleCutoff, reapBatchSize)
	if err != nil {
		r.logger.Error("requeue stale events", "error", err)
		return
	}
	if requeued > 0 {
		metrics.EventsRequeuedTotal.Add(float64(requeued))
		r.logger.Warn("requeued stale events", "count", requeued)
	}
}
