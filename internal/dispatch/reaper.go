package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/elwyn-b/pgqueue/internal/metrics"
	"github.com/elwyn-b/pgqueue/internal/repository"
)

// Reaper recovers tasks from workers that stopped heartbeating (spec §9,
// resolved in SPEC_FULL.md §4.5): a RUNNING task whose worker's heartbeat
// is older than heartbeatTimeout is re-PENDed so it re-enters the ready set.
type Reaper struct {
	tasks            repository.TaskRepository
	logger           *slog.Logger
	interval         time.Duration
	heartbeatTimeout time.Duration
}

func NewReaper(tasks repository.TaskRepository, logger *slog.Logger, interval, heartbeatTimeout time.Duration) *Reaper {
	return &Reaper{
		tasks:            tasks,
		logger:           logger.With("component", "reaper"),
		interval:         interval,
		heartbeatTimeout: heartbeatTimeout,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "heartbeat_timeout", r.heartbeatTimeout)

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
	start := time.Now()
	defer func() { metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds()) }()

	staleCutoff := time.Now().Add(-r.heartbeatTimeout)

	rescued, err := r.tasks.RescueStale(ctx, staleCutoff)
	if err != nil {
		r.logger.Error("rescue stale tasks", "error", err)
		return
	}
	if rescued > 0 {
		metrics.ReaperRescuedTotal.WithLabelValues("heartbeat_timeout").Add(float64(rescued))
		r.logger.Info("rescued stale tasks", "count", rescued)
	}
}
