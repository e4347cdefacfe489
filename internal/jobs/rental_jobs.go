package jobs

import (
	"context"

	"onrent-backend/internal/logger"
)

// SweepOverdueRentals moves rentals past their end date from ONGOING to
// RETURN_DUE. It is the active half of the overdue sweep; reads run the
// same transition lazily.
func (jr *JobRunner) SweepOverdueRentals() {
	jr.runWithRecovery("SweepOverdueRentals", func(ctx context.Context) error {
		moved, err := jr.services.Rental.SweepOverdue(ctx, jr.now())
		logger.Info("Overdue rentals swept", "moved", moved)
		return err
	})
}
