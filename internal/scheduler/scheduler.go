package scheduler

import (
	"context"
	"log/slog"
	"time"

	"prairie_track/internal/domain"
)

const checkTimeout = 5 * time.Minute

// Checker runs one staleness check, refreshing when needed.
type Checker interface {
	OnLoad(ctx context.Context, now time.Time) (*domain.RefreshReport, error)
}

type Scheduler struct {
	checker  Checker
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(checker Checker, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		checker:  checker,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runCheck(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCheck(ctx)
		}
	}
}

func (s *Scheduler) runCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	report, err := s.checker.OnLoad(checkCtx, s.now())
	if err != nil {
		s.logger.Error("check failed", "error", err)
		return
	}
	if report != nil {
		s.logger.Info("check refreshed cache", "run_id", report.RunID, "outcome", report.Outcome)
	}
}
