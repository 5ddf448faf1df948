package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sailsonlabs/pulse/internal/telemetry"
)

// Sweeper fails processing tasks that outlived the process. It runs
// once at startup and then on a cron schedule; a crashed worker's task
// is never resumed, only marked failed.
type Sweeper struct {
	store      Store
	staleAfter time.Duration
	schedule   string
	logger     *slog.Logger
	cron       *cron.Cron
}

// NewSweeper creates a sweeper.
func NewSweeper(store Store, staleAfter time.Duration, schedule string, logger *slog.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &Sweeper{
		store:      store,
		staleAfter: staleAfter,
		schedule:   schedule,
		logger:     logger.With("component", "sweep"),
	}
}

// Sweep fails processing tasks older than the staleness bound.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.staleAfter)
	n, err := s.store.FailStale(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if n > 0 {
		telemetry.StaleTasksSwept.Add(float64(n))
		s.logger.Warn("swept stale tasks", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Start runs one startup sweep and schedules recurring ones.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.Sweep(ctx); err != nil {
		return err
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("scheduled sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("staleness sweep scheduled", "schedule", s.schedule, "stale_after", s.staleAfter)
	return nil
}

// Stop stops the recurring sweep.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
