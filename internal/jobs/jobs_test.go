package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"onrent-backend/internal/config"
	"onrent-backend/internal/service"
)

type MockRentalService struct {
	mock.Mock
	service.RentalService
}

func (m *MockRentalService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockAvailabilityService struct {
	mock.Mock
	service.AvailabilityService
}

func (m *MockAvailabilityService) GenerateUpcomingSlots(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

var fixedNow = time.Date(2026, time.June, 10, 1, 0, 0, 0, time.UTC)

func newRunner(rental *MockRentalService, availability *MockAvailabilityService) *JobRunner {
	jr := NewJobRunner(&Services{Rental: rental, Availability: availability}, &config.Config{})
	jr.now = func() time.Time { return fixedNow }
	return jr
}

func TestSweepOverdueRentals(t *testing.T) {
	rental := &MockRentalService{}
	rental.On("SweepOverdue", mock.Anything, fixedNow).Return(2, nil).Once()

	newRunner(rental, nil).SweepOverdueRentals()

	rental.AssertExpectations(t)
}

func TestGenerateFittingSlots(t *testing.T) {
	availability := &MockAvailabilityService{}
	availability.On("GenerateUpcomingSlots", mock.Anything, fixedNow).Return(int64(12), nil).Once()

	newRunner(nil, availability).GenerateFittingSlots()

	availability.AssertExpectations(t)
}

func TestRunWithRecovery(t *testing.T) {
	jr := newRunner(nil, nil)

	err := jr.runWithRecovery("failing", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")

	assert.NotPanics(t, func() {
		err = jr.runWithRecovery("panicking", func(context.Context) error {
			panic("boom")
		})
	})
	assert.NoError(t, err)
}

func TestRunAll(t *testing.T) {
	rental := &MockRentalService{}
	rental.On("SweepOverdue", mock.Anything, fixedNow).Return(0, errors.New("partial failure")).Once()
	availability := &MockAvailabilityService{}
	availability.On("GenerateUpcomingSlots", mock.Anything, fixedNow).Return(int64(0), nil).Once()

	newRunner(rental, availability).RunAll()

	rental.AssertExpectations(t)
	availability.AssertExpectations(t)
}
