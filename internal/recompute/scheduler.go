package recompute

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs full popularity recomputes on a periodic interval.
// It is stateless: each tick rescans the whole catalog.
type Scheduler struct {
	interval time.Duration
	job      *Job
}

// NewScheduler creates a periodic runner for the recompute job.
func NewScheduler(interval time.Duration, job *Job) *Scheduler {
	return &Scheduler{interval: interval, job: job}
}

// Start begins periodic recomputation. Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting recompute scheduler", "interval", s.interval)

	// Initial run so the catalog never serves stale scores after a deploy.
	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			slog.Info("[Scheduler] Running final recompute before shutdown...")
			s.runOnce(shutdownCtx)
			slog.Info("[Scheduler] Final recompute complete")

			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.job.RecomputeAll(ctx); err != nil {
		slog.Error("[Scheduler] Recompute failed", "error", err)
	}
}
