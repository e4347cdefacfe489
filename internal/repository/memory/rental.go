package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
)

type variantRepository struct{ v view }

func (r *variantRepository) GetByID(ctx context.Context, id int32) (*domain.Variant, error) {
	var out *domain.Variant
	err := r.v.read(func(d *dataset) error {
		vr, ok := d.variants[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &vr
		return nil
	})
	return out, err
}

func (r *variantRepository) LockByIDs(ctx context.Context, ids []int32) ([]domain.Variant, error) {
	var out []domain.Variant
	err := r.v.read(func(d *dataset) error {
		sorted := slices.Clone(ids)
		slices.Sort(sorted)
		for _, id := range slices.Compact(sorted) {
			if vr, ok := d.variants[id]; ok {
				out = append(out, vr)
			}
		}
		return nil
	})
	return out, err
}

func (r *variantRepository) MarkReserved(ctx context.Context, ids []int32) (int64, error) {
	var n int64
	err := r.v.write(func(d *dataset) error {
		for _, id := range ids {
			vr, ok := d.variants[id]
			if !ok || !vr.Reservable() {
				continue
			}
			vr.IsAvailable, vr.IsRented = false, true
			d.variants[id] = vr
			n++
		}
		return nil
	})
	return n, err
}

func (r *variantRepository) Release(ctx context.Context, ids []int32) error {
	return r.v.write(func(d *dataset) error {
		for _, id := range ids {
			if vr, ok := d.variants[id]; ok {
				vr.IsAvailable, vr.IsRented = true, false
				d.variants[id] = vr
			}
		}
		return nil
	})
}

func (r *variantRepository) ProductOwners(ctx context.Context, productIDs []int32) (map[int32]int32, error) {
	owners := make(map[int32]int32, len(productIDs))
	err := r.v.read(func(d *dataset) error {
		for _, id := range productIDs {
			if owner, ok := d.products[id]; ok {
				owners[id] = owner
			}
		}
		return nil
	})
	return owners, err
}

type rentalRepository struct{ v view }

func latestTracking(d *dataset, rentalID int32) (domain.TrackingEntry, bool) {
	for i := len(d.trackings) - 1; i >= 0; i-- {
		if d.trackings[i].RentalID == rentalID {
			return d.trackings[i], true
		}
	}
	return domain.TrackingEntry{}, false
}

func loadRental(d *dataset, id int32) (*domain.Rental, error) {
	rt, ok := d.rentals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rt.Items = slices.Clone(rt.Items)
	if e, ok := latestTracking(d, id); ok {
		rt.Tracking = e.Status
	}
	return &rt, nil
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	return r.v.write(func(d *dataset) error {
		for _, existing := range d.rentals {
			if existing.Code == rt.Code {
				return &domain.ValidationError{Field: "code", Reason: "already exists"}
			}
		}
		now := time.Now()
		rt.ID = d.nextID()
		rt.CreatedAt, rt.UpdatedAt = now, now
		for i := range rt.Items {
			rt.Items[i].ID = d.nextID()
			rt.Items[i].RentalID = rt.ID
		}
		stored := *rt
		stored.Items = slices.Clone(rt.Items)
		stored.Tracking = ""
		d.rentals[rt.ID] = stored
		return nil
	})
}

func (r *rentalRepository) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	var out *domain.Rental
	err := r.v.read(func(d *dataset) (err error) {
		out, err = loadRental(d, id)
		return err
	})
	return out, err
}

func (r *rentalRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Rental, error) {
	return r.GetByID(ctx, id)
}

func (r *rentalRepository) FindOverlapping(ctx context.Context, variantIDs []int32, window domain.TimeWindow, excludeRentalID *int32) ([]domain.RentalConflict, error) {
	var out []domain.RentalConflict
	err := r.v.read(func(d *dataset) error {
		for _, rt := range d.rentals {
			if rt.Status == domain.BillingStatusDone {
				continue
			}
			if excludeRentalID != nil && rt.ID == *excludeRentalID {
				continue
			}
			if !rt.Window().Overlaps(window) {
				continue
			}
			for _, it := range rt.Items {
				if slices.Contains(variantIDs, it.VariantID) {
					out = append(out, domain.RentalConflict{VariantID: it.VariantID, RentalID: rt.ID, RentalCode: rt.Code})
				}
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].VariantID != out[j].VariantID {
				return out[i].VariantID < out[j].VariantID
			}
			return out[i].RentalID < out[j].RentalID
		})
		return nil
	})
	return out, err
}

func (r *rentalRepository) UpdateStatus(ctx context.Context, id int32, status domain.BillingStatus) error {
	return r.v.write(func(d *dataset) error {
		rt, ok := d.rentals[id]
		if !ok {
			return repository.ErrNotFound
		}
		rt.Status = status
		rt.UpdatedAt = time.Now()
		d.rentals[id] = rt
		return nil
	})
}

func (r *rentalRepository) UpdateWindow(ctx context.Context, id int32, window domain.TimeWindow) error {
	return r.v.write(func(d *dataset) error {
		rt, ok := d.rentals[id]
		if !ok {
			return repository.ErrNotFound
		}
		rt.StartDate, rt.EndDate = window.Start, window.End
		rt.UpdatedAt = time.Now()
		d.rentals[id] = rt
		return nil
	})
}

func (r *rentalRepository) ListByCustomer(ctx context.Context, customerID int32, status domain.BillingStatus) ([]domain.Rental, error) {
	return r.list(func(rt domain.Rental) bool { return rt.CustomerID == customerID }, status)
}

func (r *rentalRepository) ListByOwner(ctx context.Context, ownerID int32, status domain.BillingStatus) ([]domain.Rental, error) {
	return r.list(func(rt domain.Rental) bool { return rt.OwnerID == ownerID }, status)
}

func (r *rentalRepository) list(match func(domain.Rental) bool, status domain.BillingStatus) ([]domain.Rental, error) {
	var out []domain.Rental
	err := r.v.read(func(d *dataset) error {
		for id, rt := range d.rentals {
			if !match(rt) || (status != "" && rt.Status != status) {
				continue
			}
			loaded, _ := loadRental(d, id)
			out = append(out, *loaded)
		}
		// newest first, like the SQL ordering
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
		return nil
	})
	return out, err
}

func (r *rentalRepository) ListOverdueCandidates(ctx context.Context, now time.Time, filter repository.OverdueFilter) ([]int32, error) {
	var ids []int32
	err := r.v.read(func(d *dataset) error {
		for id, rt := range d.rentals {
			if rt.Status == domain.BillingStatusDone || !rt.EndDate.Before(now) {
				continue
			}
			if filter.CustomerID != 0 && rt.CustomerID != filter.CustomerID {
				continue
			}
			if filter.OwnerID != 0 && rt.OwnerID != filter.OwnerID {
				continue
			}
			if e, ok := latestTracking(d, id); ok && e.Status == domain.TrackingStatusOngoing {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		return nil
	})
	return ids, err
}

func (r *rentalRepository) CreateReturn(ctx context.Context, ret *domain.Return) error {
	return r.v.write(func(d *dataset) error {
		if _, exists := d.returns[ret.RentalID]; exists {
			return &domain.ValidationError{Field: "rental_id", Reason: "return already recorded"}
		}
		ret.ID = d.nextID()
		ret.CreatedAt = time.Now()
		d.returns[ret.RentalID] = *ret
		return nil
	})
}

func (r *rentalRepository) GetReturn(ctx context.Context, rentalID int32) (*domain.Return, error) {
	var out *domain.Return
	err := r.v.read(func(d *dataset) error {
		ret, ok := d.returns[rentalID]
		if !ok {
			return repository.ErrNotFound
		}
		out = &ret
		return nil
	})
	return out, err
}

type trackingRepository struct{ v view }

func (r *trackingRepository) Append(ctx context.Context, e *domain.TrackingEntry) (bool, error) {
	appended := false
	err := r.v.write(func(d *dataset) error {
		if _, ok := d.rentals[e.RentalID]; !ok {
			return repository.ErrNotFound
		}
		for _, existing := range d.trackings {
			if existing.RentalID == e.RentalID && existing.Status == e.Status {
				return nil
			}
		}
		e.ID = d.nextID()
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		d.trackings = append(d.trackings, *e)
		appended = true
		return nil
	})
	return appended, err
}

func (r *trackingRepository) Latest(ctx context.Context, rentalID int32) (*domain.TrackingEntry, error) {
	var out *domain.TrackingEntry
	err := r.v.read(func(d *dataset) error {
		e, ok := latestTracking(d, rentalID)
		if !ok {
			return repository.ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *trackingRepository) ListByRental(ctx context.Context, rentalID int32) ([]domain.TrackingEntry, error) {
	var out []domain.TrackingEntry
	err := r.v.read(func(d *dataset) error {
		for _, e := range d.trackings {
			if e.RentalID == rentalID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
