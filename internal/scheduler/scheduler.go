package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"onrent-backend/internal/jobs"
	"onrent-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision. A job still running
	// at its next tick is skipped rather than run twice.
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	// Active overdue sweep
	if _, err := s.cron.AddFunc(cfg.SweepOverdueRentals, s.jobs.SweepOverdueRentals); err != nil {
		logger.Error("Failed to register SweepOverdueRentals job", "error", err)
		return fmt.Errorf("register SweepOverdueRentals: %w", err)
	}

	// Rolling slot horizon
	if _, err := s.cron.AddFunc(cfg.GenerateFittingSlots, s.jobs.GenerateFittingSlots); err != nil {
		logger.Error("Failed to register GenerateFittingSlots job", "error", err)
		return fmt.Errorf("register GenerateFittingSlots: %w", err)
	}

	logger.Info("All cron jobs registered successfully", "jobs", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler has jobs registered
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}

// Next reports when each registered job fires next.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, len(entries))
	for i, e := range entries {
		out[i] = e.Schedule.Next(time.Now())
	}
	return out
}
