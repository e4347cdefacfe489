package jobs

import (
	"context"

	"onrent-backend/internal/logger"
)

// GenerateFittingSlots keeps every owner's slot horizon filled from their
// weekly template. Existing slots are skipped, so reruns are harmless.
func (jr *JobRunner) GenerateFittingSlots() {
	jr.runWithRecovery("GenerateFittingSlots", func(ctx context.Context) error {
		created, err := jr.services.Availability.GenerateUpcomingSlots(ctx, jr.now())
		logger.Info("Fitting slots generated", "created", created, "horizonDays", jr.config.Booking.SlotHorizonDays)
		return err
	})
}
