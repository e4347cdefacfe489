package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/metrics"
	"onrent-backend/internal/repository"
)

type rentalService struct {
	tx       repository.Transactor
	notifier Notifier
	now      func() time.Time
}

func NewRentalService(tx repository.Transactor, notifier Notifier) RentalService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &rentalService{
		tx:       tx,
		notifier: notifier,
		now:      time.Now,
	}
}

func newRentalCode() string {
	return "RNT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (s *rentalService) Reserve(ctx context.Context, req ReserveRequest) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.Reserve", "customerID", req.CustomerID, "variantIDs", req.VariantIDs)

	rental, err := s.reserve(ctx, req)
	metrics.ReservationsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		logger.ExitMethodWithError("rentalService.Reserve", err, "customerID", req.CustomerID)
		return nil, err
	}

	logger.Info("Rental reserved", "rentalID", rental.ID, "code", rental.Code, "ownerID", rental.OwnerID, "customerID", rental.CustomerID)
	attrs := map[string]string{"rental_id": fmt.Sprint(rental.ID), "rental_code": rental.Code}
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     rental.OwnerID,
		Event:      domain.EventRentalCreated,
		Title:      "New rental",
		Message:    fmt.Sprintf("Rental %s was booked for %s to %s", rental.Code, rental.StartDate.Format(time.DateOnly), rental.EndDate.Format(time.DateOnly)),
		Attributes: attrs,
	})
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     rental.CustomerID,
		Event:      domain.EventRentalCreated,
		Title:      "Rental confirmed",
		Message:    fmt.Sprintf("Your rental %s is reserved", rental.Code),
		Attributes: attrs,
	})

	logger.ExitMethod("rentalService.Reserve", "rentalID", rental.ID)
	return rental, nil
}

func (s *rentalService) reserve(ctx context.Context, req ReserveRequest) (*domain.Rental, error) {
	if req.CustomerID <= 0 {
		return nil, domain.NewValidationError("customer_id", "is required")
	}
	if len(req.VariantIDs) == 0 {
		return nil, domain.NewValidationError("variant_ids", "must not be empty")
	}
	window := domain.NewTimeWindow(req.StartDate, req.EndDate)
	if !window.Valid() {
		return nil, domain.NewValidationError("end_date", "must be after start_date")
	}
	ids := slices.Clone(req.VariantIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	for _, id := range ids {
		if id <= 0 {
			return nil, domain.NewValidationError("variant_ids", "must be positive")
		}
	}

	var rental *domain.Rental
	err := s.tx.WithinTx(ctx, "reserve_rental", func(ctx context.Context, repos *repository.Repos) error {
		variants, err := repos.Variants.LockByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(variants) != len(ids) {
			return &domain.NotFoundError{Entity: "variant", ID: firstMissing(ids, variants)}
		}

		ownerID, err := singleOwner(variants, req.OwnerID)
		if err != nil {
			return err
		}
		if ownerID == req.CustomerID {
			return domain.NewValidationError("customer_id", "owners cannot rent their own items")
		}

		// Overlap is checked before the flags so that a request that lost a race
		// reports the rental that won it.
		conflicts, err := repos.Rentals.FindOverlapping(ctx, ids, window, nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			c := conflicts[0]
			return &domain.ConflictError{VariantID: c.VariantID, RentalCode: c.RentalCode}
		}
		for _, v := range variants {
			if !v.Reservable() {
				return &domain.NotAvailableError{VariantID: v.ID}
			}
		}

		n, err := repos.Variants.MarkReserved(ctx, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return &domain.NotAvailableError{VariantID: ids[0]}
		}

		rental = &domain.Rental{
			Code:       newRentalCode(),
			OwnerID:    ownerID,
			CustomerID: req.CustomerID,
			StartDate:  window.Start,
			EndDate:    window.End,
			Status:     domain.BillingStatusUnpaid,
			Items:      make([]domain.RentalItem, len(ids)),
		}
		for i, id := range ids {
			rental.Items[i] = domain.RentalItem{VariantID: id}
		}
		if err := repos.Rentals.Create(ctx, rental); err != nil {
			return err
		}

		entry := &domain.TrackingEntry{RentalID: rental.ID, Status: domain.TrackingStatusOngoing}
		if _, err := repos.Tracking.Append(ctx, entry); err != nil {
			return err
		}
		rental.Tracking = entry.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rental, nil
}

func firstMissing(ids []int32, found []domain.Variant) int32 {
	for _, id := range ids {
		if !slices.ContainsFunc(found, func(v domain.Variant) bool { return v.ID == id }) {
			return id
		}
	}
	return 0
}

// singleOwner returns the one owner shared by all variants.
func singleOwner(variants []domain.Variant, required int32) (int32, error) {
	var owners []int32
	for _, v := range variants {
		if !slices.Contains(owners, v.OwnerID) {
			owners = append(owners, v.OwnerID)
		}
	}
	if required != 0 && !slices.Contains(owners, required) {
		owners = append(owners, required)
	}
	if len(owners) > 1 {
		slices.Sort(owners)
		return 0, &domain.CrossOwnerError{OwnerIDs: owners}
	}
	return owners[0], nil
}

func (s *rentalService) MarkReturned(ctx context.Context, rentalID, customerID int32) (*domain.TrackingEntry, error) {
	logger.EnterMethod("rentalService.MarkReturned", "rentalID", rentalID, "customerID", customerID)

	var (
		rental *domain.Rental
		entry  *domain.TrackingEntry
	)
	err := s.tx.WithinTx(ctx, "mark_returned", func(ctx context.Context, repos *repository.Repos) error {
		var err error
		rental, err = repos.Rentals.GetForUpdate(ctx, rentalID)
		if err != nil {
			return entityNotFound(err, "rental", rentalID)
		}
		if rental.CustomerID != customerID {
			return &domain.AuthorizationError{ActorID: customerID, Action: "return this rental"}
		}
		entry, err = appendTracking(ctx, repos, rental, domain.TrackingStatusReturned)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.MarkReturned", err, "rentalID", rentalID)
		return nil, err
	}

	s.recordTracking(rental, entry.Status)
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     rental.OwnerID,
		Event:      domain.EventRentalReturned,
		Title:      "Items returned",
		Message:    fmt.Sprintf("The customer marked rental %s as returned. Please confirm receipt.", rental.Code),
		Attributes: map[string]string{"rental_id": fmt.Sprint(rental.ID), "rental_code": rental.Code},
	})

	logger.ExitMethod("rentalService.MarkReturned", "rentalID", rentalID)
	return entry, nil
}

// appendTracking moves the rental's possession log to next. The rental row
// must already be locked by the caller.
func appendTracking(ctx context.Context, repos *repository.Repos, rental *domain.Rental, next domain.TrackingStatus) (*domain.TrackingEntry, error) {
	if err := rental.Tracking.TransitionTo(next); err != nil {
		return nil, err
	}
	entry := &domain.TrackingEntry{RentalID: rental.ID, Status: next}
	appended, err := repos.Tracking.Append(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !appended {
		return nil, &domain.StateTransitionError{Machine: "tracking", From: string(rental.Tracking), To: string(next)}
	}
	rental.Tracking = next
	return entry, nil
}

func (s *rentalService) ConfirmReturn(ctx context.Context, rentalID, ownerID int32) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.ConfirmReturn", "rentalID", rentalID, "ownerID", ownerID)

	var rental *domain.Rental
	err := s.tx.WithinTx(ctx, "confirm_return", func(ctx context.Context, repos *repository.Repos) error {
		var err error
		rental, err = repos.Rentals.GetForUpdate(ctx, rentalID)
		if err != nil {
			return entityNotFound(err, "rental", rentalID)
		}
		if rental.OwnerID != ownerID {
			return &domain.AuthorizationError{ActorID: ownerID, Action: "confirm this return"}
		}
		if _, err := appendTracking(ctx, repos, rental, domain.TrackingStatusCompleted); err != nil {
			return err
		}
		if err := repos.Rentals.CreateReturn(ctx, &domain.Return{RentalID: rental.ID, ConfirmedBy: ownerID}); err != nil {
			return err
		}
		if rental.Status != domain.BillingStatusDone {
			if err := rental.Status.TransitionTo(domain.BillingStatusDone); err != nil {
				return err
			}
			if err := repos.Rentals.UpdateStatus(ctx, rental.ID, domain.BillingStatusDone); err != nil {
				return err
			}
			rental.Status = domain.BillingStatusDone
		}
		return repos.Variants.Release(ctx, rental.VariantIDs())
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.ConfirmReturn", err, "rentalID", rentalID)
		return nil, err
	}

	s.recordTracking(rental, domain.TrackingStatusCompleted)
	metrics.StateTransitionsTotal.WithLabelValues("billing", string(domain.BillingStatusDone)).Inc()
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     rental.CustomerID,
		Event:      domain.EventRentalCompleted,
		Title:      "Rental completed",
		Message:    fmt.Sprintf("The owner confirmed the return of rental %s", rental.Code),
		Attributes: map[string]string{"rental_id": fmt.Sprint(rental.ID), "rental_code": rental.Code},
	})

	logger.ExitMethod("rentalService.ConfirmReturn", "rentalID", rentalID)
	return rental, nil
}

func (s *rentalService) UpdateBillingStatus(ctx context.Context, rentalID, ownerID int32, status domain.BillingStatus) (*domain.Rental, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown billing status %q", status))
	}

	var rental *domain.Rental
	err := s.tx.WithinTx(ctx, "update_billing_status", func(ctx context.Context, repos *repository.Repos) error {
		var err error
		rental, err = repos.Rentals.GetForUpdate(ctx, rentalID)
		if err != nil {
			return entityNotFound(err, "rental", rentalID)
		}
		if rental.OwnerID != ownerID {
			return &domain.AuthorizationError{ActorID: ownerID, Action: "update billing of this rental"}
		}
		if err := rental.Status.TransitionTo(status); err != nil {
			return err
		}
		if err := repos.Rentals.UpdateStatus(ctx, rental.ID, status); err != nil {
			return err
		}
		rental.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Billing status updated", "rentalID", rental.ID, "status", status)
	metrics.StateTransitionsTotal.WithLabelValues("billing", string(status)).Inc()
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     rental.CustomerID,
		Event:      domain.EventRentalBillingUpdated,
		Title:      "Billing updated",
		Message:    fmt.Sprintf("Rental %s is now %s", rental.Code, status),
		Attributes: map[string]string{"rental_id": fmt.Sprint(rental.ID), "status": string(status)},
	})
	return rental, nil
}

func (s *rentalService) RescheduleRental(ctx context.Context, rentalID, ownerID int32, window domain.TimeWindow) (*domain.Rental, error) {
	if !window.Valid() {
		return nil, domain.NewValidationError("end_date", "must be after start_date")
	}

	var rental *domain.Rental
	err := s.tx.WithinTx(ctx, "reschedule_rental", func(ctx context.Context, repos *repository.Repos) error {
		var err error
		rental, err = repos.Rentals.GetForUpdate(ctx, rentalID)
		if err != nil {
			return entityNotFound(err, "rental", rentalID)
		}
		if rental.OwnerID != ownerID {
			return &domain.AuthorizationError{ActorID: ownerID, Action: "reschedule this rental"}
		}
		if rental.Status == domain.BillingStatusDone || rental.Tracking != domain.TrackingStatusOngoing {
			return &domain.StateTransitionError{Machine: "rental", From: string(rental.Tracking), To: "RESCHEDULED"}
		}

		ids := rental.VariantIDs()
		// Take the same variant locks a new reservation would.
		if _, err := repos.Variants.LockByIDs(ctx, ids); err != nil {
			return err
		}
		exclude := rental.ID
		conflicts, err := repos.Rentals.FindOverlapping(ctx, ids, window, &exclude)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &domain.ConflictError{VariantID: conflicts[0].VariantID, RentalCode: conflicts[0].RentalCode}
		}
		if err := repos.Rentals.UpdateWindow(ctx, rental.ID, window); err != nil {
			return err
		}
		rental.StartDate, rental.EndDate = window.Start, window.End
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Rental rescheduled", "rentalID", rental.ID, "start", rental.StartDate, "end", rental.EndDate)
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     rental.CustomerID,
		Event:      domain.EventRentalRescheduled,
		Title:      "Rental rescheduled",
		Message:    fmt.Sprintf("Rental %s now runs %s to %s", rental.Code, rental.StartDate.Format(time.DateOnly), rental.EndDate.Format(time.DateOnly)),
		Attributes: map[string]string{"rental_id": fmt.Sprint(rental.ID)},
	})
	return rental, nil
}

func (s *rentalService) ListRentals(ctx context.Context, actorID int32, role domain.Role, status domain.BillingStatus) ([]domain.Rental, error) {
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown billing status %q", status))
	}

	var filter repository.OverdueFilter
	switch role {
	case domain.RoleCustomer:
		filter.CustomerID = actorID
	case domain.RoleOwner:
		filter.OwnerID = actorID
	default:
		return nil, domain.NewValidationError("role", "must be CUSTOMER or OWNER")
	}

	// Lazy sweep: readers see overdue rentals escalated even between cron runs.
	if _, err := s.sweep(ctx, s.now(), filter); err != nil {
		logger.Warn("Lazy overdue sweep failed", "actorID", actorID, "role", role, "error", err)
	}

	rentals := s.tx.Repos().Rentals
	if role == domain.RoleCustomer {
		return rentals.ListByCustomer(ctx, actorID, status)
	}
	return rentals.ListByOwner(ctx, actorID, status)
}

func (s *rentalService) GetRental(ctx context.Context, rentalID, actorID int32) (*domain.RentalDetail, error) {
	repos := s.tx.Repos()
	rental, err := repos.Rentals.GetByID(ctx, rentalID)
	if err != nil {
		return nil, entityNotFound(err, "rental", rentalID)
	}
	if rental.CustomerID != actorID && rental.OwnerID != actorID {
		return nil, &domain.AuthorizationError{ActorID: actorID, Action: "view this rental"}
	}

	tracking, err := repos.Tracking.ListByRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	detail := &domain.RentalDetail{Rental: rental, Tracking: tracking}
	ret, err := repos.Rentals.GetReturn(ctx, rentalID)
	switch {
	case err == nil:
		detail.Return = ret
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return detail, nil
}

func (s *rentalService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	return s.sweep(ctx, now, repository.OverdueFilter{})
}

// sweep appends RETURN_DUE to each overdue candidate, one transaction per
// rental. Candidates are re-checked under the row lock, so a concurrent
// return wins over the sweep.
func (s *rentalService) sweep(ctx context.Context, now time.Time, filter repository.OverdueFilter) (int, error) {
	ids, err := s.tx.Repos().Rentals.ListOverdueCandidates(ctx, now, filter)
	if err != nil {
		return 0, err
	}

	moved := 0
	var errs []error
	for _, id := range ids {
		var rental *domain.Rental
		err := s.tx.WithinTx(ctx, "sweep_overdue", func(ctx context.Context, repos *repository.Repos) error {
			var err error
			rental, err = repos.Rentals.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if rental.Status == domain.BillingStatusDone || !rental.EndDate.Before(now) || rental.Tracking != domain.TrackingStatusOngoing {
				rental = nil
				return nil
			}
			_, err = appendTracking(ctx, repos, rental, domain.TrackingStatusReturnDue)
			return err
		})
		if err != nil {
			logger.Error("Failed to mark rental return due", "rentalID", id, "error", err)
			errs = append(errs, fmt.Errorf("rental %d: %w", id, err))
			continue
		}
		if rental == nil {
			continue
		}

		moved++
		s.recordTracking(rental, domain.TrackingStatusReturnDue)
		s.notifier.Notify(ctx, domain.Notification{
			UserID:     rental.CustomerID,
			Event:      domain.EventRentalReturnDue,
			Title:      "Return due",
			Message:    fmt.Sprintf("Rental %s ended on %s. Please return the items.", rental.Code, rental.EndDate.Format(time.DateOnly)),
			Attributes: map[string]string{"rental_id": fmt.Sprint(rental.ID), "rental_code": rental.Code},
		})
	}
	return moved, errors.Join(errs...)
}

func (s *rentalService) recordTracking(rental *domain.Rental, status domain.TrackingStatus) {
	logger.Info("Rental tracking advanced", "rentalID", rental.ID, "code", rental.Code, "status", status)
	metrics.StateTransitionsTotal.WithLabelValues("tracking", string(status)).Inc()
}
