package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/metrics"
	"onrent-backend/internal/repository"
)

type fittingService struct {
	tx       repository.Transactor
	cache    SlotCache
	notifier Notifier
	now      func() time.Time
}

func NewFittingService(tx repository.Transactor, cache SlotCache, notifier Notifier) FittingService {
	if cache == nil {
		cache = noopCache{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &fittingService{
		tx:       tx,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *fittingService) Book(ctx context.Context, customerID, slotID int32, productIDs []int32, note string) (*domain.FittingSchedule, error) {
	logger.EnterMethod("fittingService.Book", "customerID", customerID, "slotID", slotID)

	fitting, err := s.book(ctx, customerID, slotID, productIDs, note)
	metrics.FittingBookingsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		logger.ExitMethodWithError("fittingService.Book", err, "slotID", slotID)
		return nil, err
	}

	s.cache.InvalidateOwner(ctx, fitting.OwnerID)
	metrics.StateTransitionsTotal.WithLabelValues("fitting", string(fitting.Status)).Inc()
	logger.Info("Fitting booked", "fittingID", fitting.ID, "slotID", slotID, "status", fitting.Status)

	when := fitting.Slot.DateTime.Format(time.DateTime)
	attrs := map[string]string{"fitting_id": fmt.Sprint(fitting.ID), "status": string(fitting.Status)}
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     fitting.OwnerID,
		Event:      domain.EventFittingBooked,
		Title:      "New fitting appointment",
		Message:    fmt.Sprintf("A customer booked a fitting at %s (%s)", when, fitting.Status),
		Attributes: attrs,
	})
	if fitting.Status == domain.FittingStatusConfirmed {
		s.notifier.Notify(ctx, domain.Notification{
			UserID:     fitting.CustomerID,
			Event:      domain.EventFittingStatusChanged,
			Title:      "Fitting confirmed",
			Message:    fmt.Sprintf("Your fitting at %s is confirmed", when),
			Attributes: attrs,
		})
	}

	logger.ExitMethod("fittingService.Book", "fittingID", fitting.ID)
	return fitting, nil
}

func (s *fittingService) book(ctx context.Context, customerID, slotID int32, productIDs []int32, note string) (*domain.FittingSchedule, error) {
	if customerID <= 0 {
		return nil, domain.NewValidationError("customer_id", "is required")
	}
	for _, pid := range productIDs {
		if pid <= 0 {
			return nil, domain.NewValidationError("product_ids", "must be positive")
		}
	}

	var fitting *domain.FittingSchedule
	err := s.tx.WithinTx(ctx, "book_fitting", func(ctx context.Context, repos *repository.Repos) error {
		slot, err := repos.Slots.GetByID(ctx, slotID)
		if err != nil {
			return entityNotFound(err, "fitting slot", slotID)
		}
		if slot.OwnerID == customerID {
			return domain.NewValidationError("slot_id", "owners cannot book their own slots")
		}
		if slot.DateTime.Before(s.now()) {
			return domain.NewValidationError("slot_id", "slot is in the past")
		}
		if slot.IsBooked {
			return &domain.ConflictError{SlotID: slotID}
		}
		if err := checkProducts(ctx, repos, slot.OwnerID, productIDs); err != nil {
			return err
		}
		booked, err := repos.Slots.MarkBooked(ctx, slotID)
		if err != nil {
			return err
		}
		if !booked {
			return &domain.ConflictError{SlotID: slotID}
		}
		slot.IsBooked = true

		status := domain.FittingStatusPending
		if slot.IsAutoConfirm {
			status = domain.FittingStatusConfirmed
		}
		fitting = &domain.FittingSchedule{
			SlotID:     slotID,
			OwnerID:    slot.OwnerID,
			CustomerID: customerID,
			Status:     status,
			Note:       note,
			ProductIDs: dedupe(productIDs),
			Slot:       slot,
		}
		return repos.Fittings.Create(ctx, fitting)
	})
	if err != nil {
		return nil, err
	}
	return fitting, nil
}

// checkProducts requires every product to exist and belong to the slot owner.
func checkProducts(ctx context.Context, repos *repository.Repos, ownerID int32, productIDs []int32) error {
	ids := dedupe(productIDs)
	if len(ids) == 0 {
		return nil
	}
	owners, err := repos.Variants.ProductOwners(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		owner, ok := owners[id]
		if !ok {
			return &domain.NotFoundError{Entity: "product", ID: id}
		}
		if owner != ownerID {
			return domain.NewValidationError("product_ids", fmt.Sprintf("product %d is not offered by this owner", id))
		}
	}
	return nil
}

func dedupe(ids []int32) []int32 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// authorizeTransition applies the caller-side permission rules: the owner
// decides on the appointment, either party may cancel it.
func authorizeTransition(f *domain.FittingSchedule, actorID int32, to domain.FittingStatus) error {
	switch to {
	case domain.FittingStatusConfirmed, domain.FittingStatusRejected, domain.FittingStatusCompleted:
		if actorID == f.OwnerID {
			return nil
		}
	case domain.FittingStatusCanceled:
		if actorID == f.OwnerID || actorID == f.CustomerID {
			return nil
		}
	default:
		return nil
	}
	return &domain.AuthorizationError{ActorID: actorID, Action: "move fitting to " + string(to)}
}

func (s *fittingService) Transition(ctx context.Context, fittingID, actorID int32, to domain.FittingStatus) (*domain.FittingSchedule, error) {
	logger.EnterMethod("fittingService.Transition", "fittingID", fittingID, "actorID", actorID, "to", to)

	if !to.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown fitting status %q", to))
	}

	var (
		fitting *domain.FittingSchedule
		from    domain.FittingStatus
	)
	err := s.tx.WithinTx(ctx, "transition_fitting", func(ctx context.Context, repos *repository.Repos) error {
		var err error
		fitting, err = repos.Fittings.GetForUpdate(ctx, fittingID)
		if err != nil {
			return entityNotFound(err, "fitting", fittingID)
		}
		if err := authorizeTransition(fitting, actorID, to); err != nil {
			return err
		}
		from = fitting.Status
		if err := from.TransitionTo(to); err != nil {
			return err
		}
		updated, err := repos.Fittings.UpdateStatus(ctx, fittingID, from, to)
		if err != nil {
			return err
		}
		if !updated {
			return &domain.StateTransitionError{Machine: "fitting", From: string(from), To: string(to)}
		}
		if !to.HoldsSlot() {
			if err := repos.Slots.Release(ctx, fitting.SlotID); err != nil {
				return err
			}
			if fitting.Slot != nil {
				fitting.Slot.IsBooked = false
			}
		}
		fitting.Status = to
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("fittingService.Transition", err, "fittingID", fittingID)
		return nil, err
	}

	if !to.HoldsSlot() {
		s.cache.InvalidateOwner(ctx, fitting.OwnerID)
	}
	metrics.StateTransitionsTotal.WithLabelValues("fitting", string(to)).Inc()
	logger.Info("Fitting status changed", "fittingID", fittingID, "from", from, "to", to, "actorID", actorID)

	recipient := fitting.CustomerID
	if actorID == fitting.CustomerID {
		recipient = fitting.OwnerID
	}
	s.notifier.Notify(ctx, domain.Notification{
		UserID:     recipient,
		Event:      domain.EventFittingStatusChanged,
		Title:      "Fitting " + string(to),
		Message:    fmt.Sprintf("Fitting #%d moved from %s to %s", fitting.ID, from, to),
		Attributes: map[string]string{"fitting_id": fmt.Sprint(fitting.ID), "status": string(to)},
	})

	logger.ExitMethod("fittingService.Transition", "fittingID", fittingID)
	return fitting, nil
}

func (s *fittingService) ListFittings(ctx context.Context, actorID int32, role domain.Role, status domain.FittingStatus) ([]domain.FittingSchedule, error) {
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown fitting status %q", status))
	}
	fittings := s.tx.Repos().Fittings
	switch role {
	case domain.RoleCustomer:
		return fittings.ListByCustomer(ctx, actorID, status)
	case domain.RoleOwner:
		return fittings.ListByOwner(ctx, actorID, status)
	}
	return nil, domain.NewValidationError("role", "must be CUSTOMER or OWNER")
}

func (s *fittingService) GetFitting(ctx context.Context, fittingID, actorID int32) (*domain.FittingSchedule, error) {
	fitting, err := s.tx.Repos().Fittings.GetByID(ctx, fittingID)
	if err != nil {
		return nil, entityNotFound(err, "fitting", fittingID)
	}
	if fitting.CustomerID != actorID && fitting.OwnerID != actorID {
		return nil, &domain.AuthorizationError{ActorID: actorID, Action: "view this fitting"}
	}
	return fitting, nil
}
