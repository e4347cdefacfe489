package service

import (
	"context"
	"errors"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/metrics"
	"onrent-backend/internal/repository"
)

// ReserveRequest is the input of RentalService.Reserve. OwnerID, when set,
// constrains every variant to that owner.
type ReserveRequest struct {
	CustomerID int32
	OwnerID    int32
	VariantIDs []int32
	StartDate  time.Time
	EndDate    time.Time
}

type RentalService interface {
	Reserve(ctx context.Context, req ReserveRequest) (*domain.Rental, error)
	MarkReturned(ctx context.Context, rentalID, customerID int32) (*domain.TrackingEntry, error)
	ConfirmReturn(ctx context.Context, rentalID, ownerID int32) (*domain.Rental, error)
	UpdateBillingStatus(ctx context.Context, rentalID, ownerID int32, status domain.BillingStatus) (*domain.Rental, error)
	RescheduleRental(ctx context.Context, rentalID, ownerID int32, window domain.TimeWindow) (*domain.Rental, error)
	ListRentals(ctx context.Context, actorID int32, role domain.Role, status domain.BillingStatus) ([]domain.Rental, error)
	GetRental(ctx context.Context, rentalID, actorID int32) (*domain.RentalDetail, error)
	// SweepOverdue moves every rental past its end date from ONGOING to
	// RETURN_DUE and returns how many moved.
	SweepOverdue(ctx context.Context, now time.Time) (int, error)
}

type AvailabilityService interface {
	GetWeeklyTemplate(ctx context.Context, ownerID int32) ([]domain.WeeklyAvailability, error)
	SetWeeklyTemplate(ctx context.Context, ownerID int32, entries []domain.WeeklyAvailability) ([]domain.WeeklyAvailability, error)
	GetSettings(ctx context.Context, ownerID int32) (*domain.OwnerSettings, error)
	SetAutoConfirm(ctx context.Context, ownerID int32, autoConfirm bool) (*domain.OwnerSettings, error)
	CreateScheduleBlock(ctx context.Context, ownerID int32, window domain.TimeWindow, reason string) (*domain.ScheduleBlock, error)
	ListScheduleBlocks(ctx context.Context, ownerID int32) ([]domain.ScheduleBlock, error)
	DeleteScheduleBlock(ctx context.Context, ownerID, blockID int32) error
	// GenerateSlots materializes the weekly template into slots for every
	// WIB calendar day from start through end and returns the number created.
	GenerateSlots(ctx context.Context, ownerID int32, start, end time.Time) (int64, error)
	CreateSlot(ctx context.Context, ownerID int32, at time.Time) (*domain.FittingSlot, error)
	ListOpenSlots(ctx context.Context, ownerID int32, start, end time.Time) ([]domain.FittingSlot, error)
	GenerateUpcomingSlots(ctx context.Context, now time.Time) (int64, error)
}

type FittingService interface {
	Book(ctx context.Context, customerID, slotID int32, productIDs []int32, note string) (*domain.FittingSchedule, error)
	Transition(ctx context.Context, fittingID, actorID int32, to domain.FittingStatus) (*domain.FittingSchedule, error)
	ListFittings(ctx context.Context, actorID int32, role domain.Role, status domain.FittingStatus) ([]domain.FittingSchedule, error)
	GetFitting(ctx context.Context, fittingID, actorID int32) (*domain.FittingSchedule, error)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID int32) error
}

// Notifier hands a notification to delivery after the business transaction
// has committed. It never reports failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// SlotCache stores open-slot listings per owner and date range. GetSlots
// reports the owner's cache version; SetSlots must be given the version seen
// by the miss so a listing read before an invalidation is never served after it.
type SlotCache interface {
	GetSlots(ctx context.Context, ownerID int32, start, end time.Time) ([]domain.FittingSlot, int64, bool)
	SetSlots(ctx context.Context, ownerID int32, version int64, start, end time.Time, slots []domain.FittingSlot)
	InvalidateOwner(ctx context.Context, ownerID int32)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Notification) {}

type noopCache struct{}

func (noopCache) GetSlots(context.Context, int32, time.Time, time.Time) ([]domain.FittingSlot, int64, bool) {
	return nil, -1, false
}

func (noopCache) SetSlots(context.Context, int32, int64, time.Time, time.Time, []domain.FittingSlot) {
}

func (noopCache) InvalidateOwner(context.Context, int32) {}

// entityNotFound converts the repository sentinel into a typed error.
func entityNotFound(err error, entity string, id int32) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// resultLabel classifies an outcome for the reservation and booking counters.
func resultLabel(err error) string {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		ce *domain.ConflictError
		na *domain.NotAvailableError
		co *domain.CrossOwnerError
		te *domain.TimeoutError
		ae *domain.AuthorizationError
	)
	switch {
	case err == nil:
		return metrics.ResultCreated
	case errors.As(err, &ce):
		return metrics.ResultConflict
	case errors.As(err, &na):
		return metrics.ResultNotAvailable
	case errors.As(err, &co):
		return metrics.ResultCrossOwner
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &ae):
		return metrics.ResultInvalid
	case errors.As(err, &te):
		return metrics.ResultTimeout
	}
	return metrics.ResultError
}
