// Package memory is an in-process implementation of the repository
// interfaces. A single writer lock stands in for row locks, and every unit of
// work runs against a private copy of the data that replaces the live copy
// only on commit.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/metrics"
	"onrent-backend/internal/repository"
)

const DefaultTxTimeout = 12 * time.Second

type dataset struct {
	seq           int32
	users         map[int32]domain.User
	variants      map[int32]domain.Variant
	products      map[int32]int32 // product id -> owner id
	rentals       map[int32]domain.Rental
	trackings     []domain.TrackingEntry
	returns       map[int32]domain.Return
	weekly        map[int32]map[int]domain.WeeklyAvailability
	settings      map[int32]domain.OwnerSettings
	blocks        map[int32]domain.ScheduleBlock
	slots         map[int32]domain.FittingSlot
	fittings      map[int32]domain.FittingSchedule
	notifications []domain.Notification
}

func newDataset() *dataset {
	return &dataset{
		users:    map[int32]domain.User{},
		variants: map[int32]domain.Variant{},
		products: map[int32]int32{},
		rentals:  map[int32]domain.Rental{},
		returns:  map[int32]domain.Return{},
		weekly:   map[int32]map[int]domain.WeeklyAvailability{},
		settings: map[int32]domain.OwnerSettings{},
		blocks:   map[int32]domain.ScheduleBlock{},
		slots:    map[int32]domain.FittingSlot{},
		fittings: map[int32]domain.FittingSchedule{},
	}
}

func (d *dataset) nextID() int32 {
	d.seq++
	return d.seq
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		seq:           d.seq,
		users:         maps.Clone(d.users),
		variants:      maps.Clone(d.variants),
		products:      maps.Clone(d.products),
		rentals:       make(map[int32]domain.Rental, len(d.rentals)),
		trackings:     slices.Clone(d.trackings),
		returns:       maps.Clone(d.returns),
		weekly:        make(map[int32]map[int]domain.WeeklyAvailability, len(d.weekly)),
		settings:      maps.Clone(d.settings),
		blocks:        maps.Clone(d.blocks),
		slots:         maps.Clone(d.slots),
		fittings:      make(map[int32]domain.FittingSchedule, len(d.fittings)),
		notifications: slices.Clone(d.notifications),
	}
	for id, r := range d.rentals {
		r.Items = slices.Clone(r.Items)
		c.rentals[id] = r
	}
	for owner, days := range d.weekly {
		c.weekly[owner] = maps.Clone(days)
	}
	for id, f := range d.fittings {
		f.ProductIDs = slices.Clone(f.ProductIDs)
		c.fittings[id] = f
	}
	return c
}

// Store serializes units of work with a one-slot semaphore so that waiting
// callers can give up when their context expires.
type Store struct {
	sem       chan struct{}
	data      *dataset
	txTimeout time.Duration
	repos     *repository.Repos
}

func NewStore(txTimeout time.Duration) *Store {
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	s := &Store{
		sem:       make(chan struct{}, 1),
		data:      newDataset(),
		txTimeout: txTimeout,
	}
	s.repos = newRepos(&autoView{store: s})
	return s
}

// view gives repositories access to the data, either the private copy of an
// open unit of work or the live data behind the store lock.
type view interface {
	read(fn func(d *dataset) error) error
	write(fn func(d *dataset) error) error
}

type txView struct {
	data *dataset
}

func (v *txView) read(fn func(d *dataset) error) error  { return fn(v.data) }
func (v *txView) write(fn func(d *dataset) error) error { return fn(v.data) }

// autoView runs each call as its own unit of work.
type autoView struct {
	store *Store
}

func (v *autoView) read(fn func(d *dataset) error) error {
	v.store.sem <- struct{}{}
	defer func() { <-v.store.sem }()
	return fn(v.store.data)
}

func (v *autoView) write(fn func(d *dataset) error) error {
	v.store.sem <- struct{}{}
	defer func() { <-v.store.sem }()
	next := v.store.data.clone()
	if err := fn(next); err != nil {
		return err
	}
	v.store.data = next
	return nil
}

func newRepos(v view) *repository.Repos {
	return &repository.Repos{
		Variants:      &variantRepository{v: v},
		Rentals:       &rentalRepository{v: v},
		Tracking:      &trackingRepository{v: v},
		Availability:  &availabilityRepository{v: v},
		Slots:         &slotRepository{v: v},
		Fittings:      &fittingRepository{v: v},
		Users:         &userRepository{v: v},
		Notifications: &notificationRepository{v: v},
	}
}

func (s *Store) Repos() *repository.Repos {
	return s.repos
}

func (s *Store) WithinTx(ctx context.Context, op string, fn func(ctx context.Context, repos *repository.Repos) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.TxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return &domain.TimeoutError{Op: op, Err: ctx.Err()}
	}
	defer func() { <-s.sem }()

	next := s.data.clone()
	if err := fn(ctx, newRepos(&txView{data: next})); err != nil {
		logger.Debug("Transaction rolled back", "op", op, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return &domain.TimeoutError{Op: op, Err: err}
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return &domain.TimeoutError{Op: op, Err: err}
	}
	s.data = next
	return nil
}
