package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onrent-backend/internal/config"
	"onrent-backend/internal/jobs"
)

func TestNewScheduler_RegistersJobs(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		SweepOverdueRentals:  "0 */15 * * * *",
		GenerateFittingSlots: "0 0 1 * * *",
	}}

	s, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	require.NoError(t, err)
	assert.True(t, s.IsRunning())

	next := s.Next()
	require.Len(t, next, 2)
	for _, at := range next {
		assert.False(t, at.IsZero())
	}

	s.Start()
	s.Stop()
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		SweepOverdueRentals:  "every fifteen minutes",
		GenerateFittingSlots: "0 0 1 * * *",
	}}

	_, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	assert.ErrorContains(t, err, "SweepOverdueRentals")
}
