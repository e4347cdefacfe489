package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/metrics"
	"onrent-backend/internal/repository"
	"onrent-backend/internal/timeutil"
)

const (
	DefaultSlotHorizonDays = 14
	// maxGenerateDays bounds a single generation request.
	maxGenerateDays = 92
	// maxListDays bounds a single open-slot listing.
	maxListDays = 92
)

type availabilityService struct {
	tx          repository.Transactor
	cache       SlotCache
	horizonDays int
	now         func() time.Time
}

func NewAvailabilityService(tx repository.Transactor, cache SlotCache, horizonDays int) AvailabilityService {
	if cache == nil {
		cache = noopCache{}
	}
	if horizonDays <= 0 {
		horizonDays = DefaultSlotHorizonDays
	}
	return &availabilityService{
		tx:          tx,
		cache:       cache,
		horizonDays: horizonDays,
		now:         time.Now,
	}
}

// GetWeeklyTemplate always returns seven entries, Sunday first; weekdays the
// owner never configured come back disabled.
func (s *availabilityService) GetWeeklyTemplate(ctx context.Context, ownerID int32) ([]domain.WeeklyAvailability, error) {
	stored, err := s.tx.Repos().Availability.GetWeekly(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	week := make([]domain.WeeklyAvailability, 7)
	for d := range week {
		week[d] = domain.WeeklyAvailability{OwnerID: ownerID, Weekday: d}
	}
	for _, w := range stored {
		if w.Weekday >= 0 && w.Weekday < 7 {
			week[w.Weekday] = w
		}
	}
	return week, nil
}

func (s *availabilityService) SetWeeklyTemplate(ctx context.Context, ownerID int32, entries []domain.WeeklyAvailability) ([]domain.WeeklyAvailability, error) {
	logger.EnterMethod("availabilityService.SetWeeklyTemplate", "ownerID", ownerID, "entries", len(entries))

	normalized, err := normalizeTemplate(ownerID, entries)
	if err != nil {
		logger.ExitMethodWithError("availabilityService.SetWeeklyTemplate", err, "ownerID", ownerID)
		return nil, err
	}
	err = s.tx.WithinTx(ctx, "set_weekly_template", func(ctx context.Context, repos *repository.Repos) error {
		return repos.Availability.ReplaceWeekly(ctx, ownerID, normalized)
	})
	if err != nil {
		logger.ExitMethodWithError("availabilityService.SetWeeklyTemplate", err, "ownerID", ownerID)
		return nil, err
	}

	logger.ExitMethod("availabilityService.SetWeeklyTemplate", "ownerID", ownerID)
	return s.GetWeeklyTemplate(ctx, ownerID)
}

func normalizeTemplate(ownerID int32, entries []domain.WeeklyAvailability) ([]domain.WeeklyAvailability, error) {
	seen := map[int]bool{}
	out := make([]domain.WeeklyAvailability, 0, len(entries))
	for _, w := range entries {
		if w.Weekday < 0 || w.Weekday > 6 {
			return nil, domain.NewValidationError("weekday", fmt.Sprintf("%d is not in 0..6", w.Weekday))
		}
		if seen[w.Weekday] {
			return nil, domain.NewValidationError("weekday", fmt.Sprintf("%d appears twice", w.Weekday))
		}
		seen[w.Weekday] = true

		w.OwnerID = ownerID
		if !w.Enabled {
			w.StartHour, w.EndHour = 0, 0
		} else if w.StartHour < 1 || w.EndHour > 23 || w.StartHour >= w.EndHour {
			return nil, domain.NewValidationError("hours",
				fmt.Sprintf("weekday %d needs 1 <= start_hour < end_hour <= 23, got %d-%d", w.Weekday, w.StartHour, w.EndHour))
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *availabilityService) GetSettings(ctx context.Context, ownerID int32) (*domain.OwnerSettings, error) {
	return s.tx.Repos().Availability.GetSettings(ctx, ownerID)
}

// SetAutoConfirm only affects slots generated afterwards.
func (s *availabilityService) SetAutoConfirm(ctx context.Context, ownerID int32, autoConfirm bool) (*domain.OwnerSettings, error) {
	settings := &domain.OwnerSettings{OwnerID: ownerID, IsAutoConfirm: autoConfirm}
	err := s.tx.WithinTx(ctx, "set_auto_confirm", func(ctx context.Context, repos *repository.Repos) error {
		return repos.Availability.SaveSettings(ctx, settings)
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *availabilityService) CreateScheduleBlock(ctx context.Context, ownerID int32, window domain.TimeWindow, reason string) (*domain.ScheduleBlock, error) {
	if !window.Valid() {
		return nil, domain.NewValidationError("end_time", "must be after start_time")
	}
	block := &domain.ScheduleBlock{OwnerID: ownerID, StartTime: window.Start, EndTime: window.End, Reason: reason}
	err := s.tx.WithinTx(ctx, "create_schedule_block", func(ctx context.Context, repos *repository.Repos) error {
		return repos.Availability.CreateBlock(ctx, block)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateOwner(ctx, ownerID)
	return block, nil
}

func (s *availabilityService) ListScheduleBlocks(ctx context.Context, ownerID int32) ([]domain.ScheduleBlock, error) {
	return s.tx.Repos().Availability.ListBlocks(ctx, ownerID, nil)
}

func (s *availabilityService) DeleteScheduleBlock(ctx context.Context, ownerID, blockID int32) error {
	err := s.tx.WithinTx(ctx, "delete_schedule_block", func(ctx context.Context, repos *repository.Repos) error {
		return entityNotFound(repos.Availability.DeleteBlock(ctx, ownerID, blockID), "schedule block", blockID)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateOwner(ctx, ownerID)
	return nil
}

func (s *availabilityService) GenerateSlots(ctx context.Context, ownerID int32, start, end time.Time) (int64, error) {
	logger.EnterMethod("availabilityService.GenerateSlots", "ownerID", ownerID, "start", start, "end", end)

	span := timeutil.DaySpan(start, end)
	switch {
	case start.IsZero() || end.IsZero() || span == 0:
		return 0, domain.NewValidationError("end_date", "must not be before start_date")
	case span > maxGenerateDays:
		return 0, domain.NewValidationError("end_date", fmt.Sprintf("range exceeds %d days", maxGenerateDays))
	}
	days := timeutil.Days(start, end)

	var created int64
	err := s.tx.WithinTx(ctx, "generate_slots", func(ctx context.Context, repos *repository.Repos) error {
		template, err := repos.Availability.GetWeekly(ctx, ownerID)
		if err != nil {
			return err
		}
		settings, err := repos.Availability.GetSettings(ctx, ownerID)
		if err != nil {
			return err
		}

		byWeekday := map[int]domain.WeeklyAvailability{}
		for _, w := range template {
			byWeekday[w.Weekday] = w
		}

		var slots []domain.FittingSlot
		for _, day := range days {
			entry, ok := byWeekday[int(day.Weekday())]
			if !ok {
				continue
			}
			for _, hour := range entry.Hours() {
				slots = append(slots, domain.FittingSlot{
					OwnerID:       ownerID,
					DateTime:      timeutil.AtHour(day, hour).UTC(),
					Duration:      int(domain.SlotDuration / time.Minute),
					IsAutoConfirm: settings.IsAutoConfirm,
				})
			}
		}
		created, err = repos.Slots.InsertSkipDuplicates(ctx, slots)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("availabilityService.GenerateSlots", err, "ownerID", ownerID)
		return 0, err
	}

	if created > 0 {
		metrics.SlotsGeneratedTotal.Add(float64(created))
		s.cache.InvalidateOwner(ctx, ownerID)
	}
	logger.ExitMethod("availabilityService.GenerateSlots", "ownerID", ownerID, "created", created)
	return created, nil
}

// CreateSlot adds a single ad-hoc slot. An existing slot at the same instant
// is returned unchanged.
func (s *availabilityService) CreateSlot(ctx context.Context, ownerID int32, at time.Time) (*domain.FittingSlot, error) {
	if at.IsZero() {
		return nil, domain.NewValidationError("date_time", "is required")
	}
	if !at.After(s.now()) {
		return nil, domain.NewValidationError("date_time", "must be in the future")
	}
	at = at.Truncate(time.Minute).UTC()

	var slot *domain.FittingSlot
	err := s.tx.WithinTx(ctx, "create_slot", func(ctx context.Context, repos *repository.Repos) error {
		settings, err := repos.Availability.GetSettings(ctx, ownerID)
		if err != nil {
			return err
		}
		_, err = repos.Slots.InsertSkipDuplicates(ctx, []domain.FittingSlot{{
			OwnerID:       ownerID,
			DateTime:      at,
			Duration:      int(domain.SlotDuration / time.Minute),
			IsAutoConfirm: settings.IsAutoConfirm,
		}})
		if err != nil {
			return err
		}
		existing, err := repos.Slots.ListByOwner(ctx, ownerID, domain.TimeWindow{Start: at, End: at}, false)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return fmt.Errorf("slot at %s missing after insert", at)
		}
		slot = &existing[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateOwner(ctx, ownerID)
	return slot, nil
}

// ListOpenSlots returns unbooked, future slots between the WIB days of start
// and end that do not intersect a schedule block.
func (s *availabilityService) ListOpenSlots(ctx context.Context, ownerID int32, start, end time.Time) ([]domain.FittingSlot, error) {
	from := timeutil.StartOfDay(start)
	to := timeutil.StartOfDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
	if start.IsZero() || end.IsZero() || to.Before(from) {
		return nil, domain.NewValidationError("end_date", "must not be before start_date")
	}
	if timeutil.DaySpan(start, end) > maxListDays {
		return nil, domain.NewValidationError("end_date", fmt.Sprintf("range exceeds %d days", maxListDays))
	}

	slots, version, ok := s.cache.GetSlots(ctx, ownerID, from, to)
	if !ok {
		var err error
		slots, err = s.openSlots(ctx, ownerID, domain.TimeWindow{Start: from, End: to})
		if err != nil {
			return nil, err
		}
		s.cache.SetSlots(ctx, ownerID, version, from, to, slots)
	}

	now := s.now()
	open := make([]domain.FittingSlot, 0, len(slots))
	for _, slot := range slots {
		if !slot.DateTime.Before(now) {
			open = append(open, slot)
		}
	}
	return open, nil
}

func (s *availabilityService) openSlots(ctx context.Context, ownerID int32, window domain.TimeWindow) ([]domain.FittingSlot, error) {
	repos := s.tx.Repos()
	slots, err := repos.Slots.ListByOwner(ctx, ownerID, window, true)
	if err != nil {
		return nil, err
	}
	blocks, err := repos.Availability.ListBlocks(ctx, ownerID, &window)
	if err != nil {
		return nil, err
	}

	open := make([]domain.FittingSlot, 0, len(slots))
	for _, slot := range slots {
		if !blocked(slot.Window(), blocks) {
			open = append(open, slot)
		}
	}
	return open, nil
}

// blocked uses half-open intervals: a block starting exactly when a slot ends
// does not hide it.
func blocked(slot domain.TimeWindow, blocks []domain.ScheduleBlock) bool {
	for _, b := range blocks {
		if slot.Start.Before(b.EndTime) && slot.End.After(b.StartTime) {
			return true
		}
	}
	return false
}

func (s *availabilityService) GenerateUpcomingSlots(ctx context.Context, now time.Time) (int64, error) {
	owners, err := s.tx.Repos().Availability.ListOwnersWithTemplate(ctx)
	if err != nil {
		return 0, err
	}

	start := timeutil.StartOfDay(now)
	end := start.AddDate(0, 0, s.horizonDays)
	var (
		total int64
		errs  []error
	)
	for _, ownerID := range owners {
		n, err := s.GenerateSlots(ctx, ownerID, start, end)
		if err != nil {
			logger.Error("Failed to generate slots", "ownerID", ownerID, "error", err)
			errs = append(errs, fmt.Errorf("owner %d: %w", ownerID, err))
			continue
		}
		total += n
	}
	logger.Info("Upcoming slots generated", "owners", len(owners), "created", total, "horizonDays", s.horizonDays)
	return total, errors.Join(errs...)
}
