package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/digischool/exam-api/internal/service"
)

// ReleaseScheduler periodically sweeps ended exams and publishes their
// results. Sweeps are idempotent, so overlapping deployments running the
// scheduler concurrently converge on the same state.
type ReleaseScheduler struct {
	releaser service.ReleaseService
	interval time.Duration
	logger   zerolog.Logger
}

// NewReleaseScheduler constructs the scheduler.
func NewReleaseScheduler(releaser service.ReleaseService, interval time.Duration, logger zerolog.Logger) *ReleaseScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReleaseScheduler{
		releaser: releaser,
		interval: interval,
		logger:   logger.With().Str("component", "release_scheduler").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *ReleaseScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("release scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("release scheduler stopped")
			return
		case <-ticker.C:
			released, err := s.releaser.SweepEnded(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("release sweep failed")
				continue
			}
			if released > 0 {
				s.logger.Info().Int("released", released).Msg("release sweep published results")
			}
		}
	}
}
