package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
)

type availabilityRepository struct{ v view }

func (r *availabilityRepository) GetWeekly(ctx context.Context, ownerID int32) ([]domain.WeeklyAvailability, error) {
	var out []domain.WeeklyAvailability
	err := r.v.read(func(d *dataset) error {
		for _, w := range d.weekly[ownerID] {
			out = append(out, w)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
		return nil
	})
	return out, err
}

func (r *availabilityRepository) ReplaceWeekly(ctx context.Context, ownerID int32, entries []domain.WeeklyAvailability) error {
	return r.v.write(func(d *dataset) error {
		days := map[int]domain.WeeklyAvailability{}
		d.weekly[ownerID] = days
		for _, w := range entries {
			w.OwnerID = ownerID
			days[w.Weekday] = w
		}
		return nil
	})
}

func (r *availabilityRepository) ListOwnersWithTemplate(ctx context.Context) ([]int32, error) {
	var owners []int32
	err := r.v.read(func(d *dataset) error {
		for owner, days := range d.weekly {
			for _, w := range days {
				if w.Enabled {
					owners = append(owners, owner)
					break
				}
			}
		}
		slices.Sort(owners)
		return nil
	})
	return owners, err
}

func (r *availabilityRepository) GetSettings(ctx context.Context, ownerID int32) (*domain.OwnerSettings, error) {
	out := &domain.OwnerSettings{OwnerID: ownerID}
	err := r.v.read(func(d *dataset) error {
		if s, ok := d.settings[ownerID]; ok {
			*out = s
		}
		return nil
	})
	return out, err
}

func (r *availabilityRepository) SaveSettings(ctx context.Context, s *domain.OwnerSettings) error {
	return r.v.write(func(d *dataset) error {
		d.settings[s.OwnerID] = *s
		return nil
	})
}

func (r *availabilityRepository) CreateBlock(ctx context.Context, b *domain.ScheduleBlock) error {
	return r.v.write(func(d *dataset) error {
		b.ID = d.nextID()
		b.CreatedAt = time.Now()
		d.blocks[b.ID] = *b
		return nil
	})
}

func (r *availabilityRepository) ListBlocks(ctx context.Context, ownerID int32, window *domain.TimeWindow) ([]domain.ScheduleBlock, error) {
	var out []domain.ScheduleBlock
	err := r.v.read(func(d *dataset) error {
		for _, b := range d.blocks {
			if b.OwnerID != ownerID {
				continue
			}
			if window != nil && !b.Window().Overlaps(*window) {
				continue
			}
			out = append(out, b)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
		return nil
	})
	return out, err
}

func (r *availabilityRepository) DeleteBlock(ctx context.Context, ownerID, blockID int32) error {
	return r.v.write(func(d *dataset) error {
		b, ok := d.blocks[blockID]
		if !ok || b.OwnerID != ownerID {
			return repository.ErrNotFound
		}
		delete(d.blocks, blockID)
		return nil
	})
}

type slotRepository struct{ v view }

func (r *slotRepository) InsertSkipDuplicates(ctx context.Context, slots []domain.FittingSlot) (int64, error) {
	var created int64
	err := r.v.write(func(d *dataset) error {
		taken := map[string]bool{}
		for _, s := range d.slots {
			taken[slotKey(s.OwnerID, s.DateTime)] = true
		}
		now := time.Now()
		for _, s := range slots {
			key := slotKey(s.OwnerID, s.DateTime)
			if taken[key] {
				continue
			}
			s.ID = d.nextID()
			s.DateTime = s.DateTime.UTC()
			s.IsBooked = false
			s.CreatedAt = now
			d.slots[s.ID] = s
			taken[key] = true
			created++
		}
		return nil
	})
	return created, err
}

func slotKey(ownerID int32, at time.Time) string {
	return fmt.Sprintf("%d/%d", ownerID, at.Unix())
}

func (r *slotRepository) GetByID(ctx context.Context, id int32) (*domain.FittingSlot, error) {
	var out *domain.FittingSlot
	err := r.v.read(func(d *dataset) error {
		s, ok := d.slots[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r *slotRepository) MarkBooked(ctx context.Context, id int32) (bool, error) {
	booked := false
	err := r.v.write(func(d *dataset) error {
		s, ok := d.slots[id]
		if !ok || s.IsBooked {
			return nil
		}
		s.IsBooked = true
		d.slots[id] = s
		booked = true
		return nil
	})
	return booked, err
}

func (r *slotRepository) Release(ctx context.Context, id int32) error {
	return r.v.write(func(d *dataset) error {
		if s, ok := d.slots[id]; ok {
			s.IsBooked = false
			d.slots[id] = s
		}
		return nil
	})
}

func (r *slotRepository) ListByOwner(ctx context.Context, ownerID int32, window domain.TimeWindow, onlyOpen bool) ([]domain.FittingSlot, error) {
	var out []domain.FittingSlot
	err := r.v.read(func(d *dataset) error {
		for _, s := range d.slots {
			if s.OwnerID != ownerID || (onlyOpen && s.IsBooked) {
				continue
			}
			if s.DateTime.Before(window.Start) || s.DateTime.After(window.End) {
				continue
			}
			out = append(out, s)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
		return nil
	})
	return out, err
}

type fittingRepository struct{ v view }

func loadFitting(d *dataset, id int32) (*domain.FittingSchedule, error) {
	f, ok := d.fittings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f.ProductIDs = slices.Clone(f.ProductIDs)
	if s, ok := d.slots[f.SlotID]; ok {
		f.Slot = &s
	}
	return &f, nil
}

func (r *fittingRepository) Create(ctx context.Context, f *domain.FittingSchedule) error {
	return r.v.write(func(d *dataset) error {
		for _, existing := range d.fittings {
			if existing.SlotID == f.SlotID && existing.Status.HoldsSlot() {
				return fmt.Errorf("memory: slot %d already has an active schedule", f.SlotID)
			}
		}
		now := time.Now()
		f.ID = d.nextID()
		f.CreatedAt, f.UpdatedAt = now, now
		stored := *f
		stored.ProductIDs = slices.Clone(f.ProductIDs)
		slices.Sort(stored.ProductIDs)
		stored.ProductIDs = slices.Compact(stored.ProductIDs)
		stored.Slot = nil
		d.fittings[f.ID] = stored
		return nil
	})
}

func (r *fittingRepository) GetByID(ctx context.Context, id int32) (*domain.FittingSchedule, error) {
	var out *domain.FittingSchedule
	err := r.v.read(func(d *dataset) (err error) {
		out, err = loadFitting(d, id)
		return err
	})
	return out, err
}

func (r *fittingRepository) GetForUpdate(ctx context.Context, id int32) (*domain.FittingSchedule, error) {
	return r.GetByID(ctx, id)
}

func (r *fittingRepository) UpdateStatus(ctx context.Context, id int32, from, to domain.FittingStatus) (bool, error) {
	updated := false
	err := r.v.write(func(d *dataset) error {
		f, ok := d.fittings[id]
		if !ok || f.Status != from {
			return nil
		}
		f.Status = to
		f.UpdatedAt = time.Now()
		d.fittings[id] = f
		updated = true
		return nil
	})
	return updated, err
}

func (r *fittingRepository) ListByCustomer(ctx context.Context, customerID int32, status domain.FittingStatus) ([]domain.FittingSchedule, error) {
	return r.list(func(f domain.FittingSchedule) bool { return f.CustomerID == customerID }, status)
}

func (r *fittingRepository) ListByOwner(ctx context.Context, ownerID int32, status domain.FittingStatus) ([]domain.FittingSchedule, error) {
	return r.list(func(f domain.FittingSchedule) bool { return f.OwnerID == ownerID }, status)
}

func (r *fittingRepository) list(match func(domain.FittingSchedule) bool, status domain.FittingStatus) ([]domain.FittingSchedule, error) {
	var out []domain.FittingSchedule
	err := r.v.read(func(d *dataset) error {
		for id, f := range d.fittings {
			if !match(f) || (status != "" && f.Status != status) {
				continue
			}
			loaded, _ := loadFitting(d, id)
			out = append(out, *loaded)
		}
		sort.Slice(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.Slot != nil && b.Slot != nil && !a.Slot.DateTime.Equal(b.Slot.DateTime) {
				return a.Slot.DateTime.Before(b.Slot.DateTime)
			}
			return a.ID < b.ID
		})
		return nil
	})
	return out, err
}
