package repository

import (
	"context"
	"errors"
	"time"

	"onrent-backend/internal/domain"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("repository: not found")

type VariantRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Variant, error)
	// LockByIDs returns the requested variants locked for update, ordered by id.
	// Missing ids are simply absent from the result.
	LockByIDs(ctx context.Context, ids []int32) ([]domain.Variant, error)
	// MarkReserved flips available/rented only on rows still reservable and
	// returns the number of rows changed.
	MarkReserved(ctx context.Context, ids []int32) (int64, error)
	Release(ctx context.Context, ids []int32) error
	// ProductOwners maps each known product id to its owner. Unknown ids are
	// absent from the result.
	ProductOwners(ctx context.Context, productIDs []int32) (map[int32]int32, error)
}

type RentalRepository interface {
	// Create inserts the rental and its items, filling in generated ids.
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id int32) (*domain.Rental, error)
	// GetForUpdate loads the rental with items and locks its row.
	GetForUpdate(ctx context.Context, id int32) (*domain.Rental, error)
	FindOverlapping(ctx context.Context, variantIDs []int32, window domain.TimeWindow, excludeRentalID *int32) ([]domain.RentalConflict, error)
	UpdateStatus(ctx context.Context, id int32, status domain.BillingStatus) error
	UpdateWindow(ctx context.Context, id int32, window domain.TimeWindow) error
	ListByCustomer(ctx context.Context, customerID int32, status domain.BillingStatus) ([]domain.Rental, error)
	ListByOwner(ctx context.Context, ownerID int32, status domain.BillingStatus) ([]domain.Rental, error)
	// ListOverdueCandidates returns non-DONE rentals whose window ended before
	// now and whose latest tracking entry is ONGOING. Callers re-check under lock.
	ListOverdueCandidates(ctx context.Context, now time.Time, filter OverdueFilter) ([]int32, error)
	CreateReturn(ctx context.Context, ret *domain.Return) error
	GetReturn(ctx context.Context, rentalID int32) (*domain.Return, error)
}

// OverdueFilter narrows an overdue sweep to one customer or owner; zero
// values mean no restriction.
type OverdueFilter struct {
	CustomerID int32
	OwnerID    int32
}

// TrackingRepository appends possession entries. Callers hold the rental row
// lock while appending so the log stays ordered.
type TrackingRepository interface {
	// Append adds an entry. Appending a status the rental already has is a no-op
	// reported through the returned bool.
	Append(ctx context.Context, entry *domain.TrackingEntry) (bool, error)
	Latest(ctx context.Context, rentalID int32) (*domain.TrackingEntry, error)
	ListByRental(ctx context.Context, rentalID int32) ([]domain.TrackingEntry, error)
}

type AvailabilityRepository interface {
	GetWeekly(ctx context.Context, ownerID int32) ([]domain.WeeklyAvailability, error)
	// ReplaceWeekly overwrites the whole template. Weekdays not in entries
	// are removed and report as disabled.
	ReplaceWeekly(ctx context.Context, ownerID int32, entries []domain.WeeklyAvailability) error
	ListOwnersWithTemplate(ctx context.Context) ([]int32, error)
	GetSettings(ctx context.Context, ownerID int32) (*domain.OwnerSettings, error)
	SaveSettings(ctx context.Context, settings *domain.OwnerSettings) error
	CreateBlock(ctx context.Context, block *domain.ScheduleBlock) error
	ListBlocks(ctx context.Context, ownerID int32, window *domain.TimeWindow) ([]domain.ScheduleBlock, error)
	DeleteBlock(ctx context.Context, ownerID, blockID int32) error
}

type SlotRepository interface {
	// InsertSkipDuplicates inserts slots whose (owner, datetime) is new and
	// returns how many rows were created. Existing slots are left untouched.
	InsertSkipDuplicates(ctx context.Context, slots []domain.FittingSlot) (int64, error)
	GetByID(ctx context.Context, id int32) (*domain.FittingSlot, error)
	// MarkBooked sets is_booked only if it is currently false.
	MarkBooked(ctx context.Context, id int32) (bool, error)
	Release(ctx context.Context, id int32) error
	ListByOwner(ctx context.Context, ownerID int32, window domain.TimeWindow, onlyOpen bool) ([]domain.FittingSlot, error)
}

type FittingRepository interface {
	Create(ctx context.Context, fitting *domain.FittingSchedule) error
	GetByID(ctx context.Context, id int32) (*domain.FittingSchedule, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.FittingSchedule, error)
	// UpdateStatus changes status only if the row still holds from.
	UpdateStatus(ctx context.Context, id int32, from, to domain.FittingStatus) (bool, error)
	ListByCustomer(ctx context.Context, customerID int32, status domain.FittingStatus) ([]domain.FittingSchedule, error)
	ListByOwner(ctx context.Context, ownerID int32, status domain.FittingStatus) ([]domain.FittingSchedule, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int32) error
}

// Repos is the set of repositories bound to one connection or transaction.
type Repos struct {
	Variants      VariantRepository
	Rentals       RentalRepository
	Tracking      TrackingRepository
	Availability  AvailabilityRepository
	Slots         SlotRepository
	Fittings      FittingRepository
	Users         UserRepository
	Notifications NotificationRepository
}

// Transactor runs fn as a single unit of work. A nil return commits; any error
// or a cancelled context rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, op string, fn func(ctx context.Context, repos *Repos) error) error
	// Repos returns repositories outside any transaction, for plain reads.
	Repos() *Repos
}
