package domain

import "time"

// Variant is one physical, individually rentable unit of a product.
type Variant struct {
	ID          int32  `json:"id"`
	ProductID   int32  `json:"product_id"`
	OwnerID     int32  `json:"owner_id"`
	SKU         string `json:"sku"`
	IsAvailable bool   `json:"is_available"`
	IsRented    bool   `json:"is_rented"`
}

// Reservable reports whether the variant flags allow a new reservation.
func (v Variant) Reservable() bool {
	return v.IsAvailable && !v.IsRented
}

type BillingStatus string

const (
	BillingStatusUnpaid         BillingStatus = "UNPAID"
	BillingStatusPaid           BillingStatus = "PAID"
	BillingStatusOverduePayment BillingStatus = "OVERDUE_PAYMENT"
	BillingStatusDone           BillingStatus = "DONE"
)

var billingTransitions = transitions[BillingStatus]{
	BillingStatusUnpaid:         {BillingStatusPaid: {}, BillingStatusOverduePayment: {}, BillingStatusDone: {}},
	BillingStatusPaid:           {BillingStatusOverduePayment: {}, BillingStatusDone: {}},
	BillingStatusOverduePayment: {BillingStatusPaid: {}, BillingStatusDone: {}},
	BillingStatusDone:           {},
}

func (s BillingStatus) Valid() bool {
	_, ok := billingTransitions[s]
	return ok
}

func (s BillingStatus) CanTransitionTo(to BillingStatus) bool {
	return billingTransitions.allows(s, to)
}

// TransitionTo returns a *StateTransitionError when the move is not in the table.
func (s BillingStatus) TransitionTo(to BillingStatus) error {
	return billingTransitions.check("billing", s, to)
}

type TrackingStatus string

const (
	TrackingStatusOngoing   TrackingStatus = "ONGOING"
	TrackingStatusReturnDue TrackingStatus = "RETURN_DUE"
	TrackingStatusReturned  TrackingStatus = "RETURNED"
	TrackingStatusCompleted TrackingStatus = "COMPLETED"
)

var trackingTransitions = transitions[TrackingStatus]{
	TrackingStatusOngoing:   {TrackingStatusReturnDue: {}, TrackingStatusReturned: {}},
	TrackingStatusReturnDue: {TrackingStatusReturned: {}},
	TrackingStatusReturned:  {TrackingStatusCompleted: {}},
	TrackingStatusCompleted: {},
}

var trackingRank = map[TrackingStatus]int{
	TrackingStatusOngoing:   0,
	TrackingStatusReturnDue: 1,
	TrackingStatusReturned:  2,
	TrackingStatusCompleted: 3,
}

func (s TrackingStatus) Valid() bool {
	_, ok := trackingRank[s]
	return ok
}

// Rank orders tracking statuses along the possession pipeline.
func (s TrackingStatus) Rank() int {
	return trackingRank[s]
}

func (s TrackingStatus) CanTransitionTo(to TrackingStatus) bool {
	return trackingTransitions.allows(s, to)
}

func (s TrackingStatus) TransitionTo(to TrackingStatus) error {
	return trackingTransitions.check("tracking", s, to)
}

// Rental covers one or more variants of a single owner for a date window.
type Rental struct {
	ID         int32          `json:"id"`
	Code       string         `json:"code"`
	OwnerID    int32          `json:"owner_id"`
	CustomerID int32          `json:"customer_id"`
	StartDate  time.Time      `json:"start_date"`
	EndDate    time.Time      `json:"end_date"`
	Status     BillingStatus  `json:"status"`
	Items      []RentalItem   `json:"items,omitempty"`
	Tracking   TrackingStatus `json:"tracking,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (r *Rental) Window() TimeWindow {
	return TimeWindow{Start: r.StartDate, End: r.EndDate}
}

func (r *Rental) VariantIDs() []int32 {
	ids := make([]int32, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.VariantID
	}
	return ids
}

type RentalItem struct {
	ID        int32 `json:"id"`
	RentalID  int32 `json:"rental_id"`
	VariantID int32 `json:"variant_id"`
}

// TrackingEntry is one append-only possession state record.
type TrackingEntry struct {
	ID        int32          `json:"id"`
	RentalID  int32          `json:"rental_id"`
	Status    TrackingStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Return is written once, when the owner confirms the items came back.
type Return struct {
	ID          int32     `json:"id"`
	RentalID    int32     `json:"rental_id"`
	ConfirmedBy int32     `json:"confirmed_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// RentalConflict is an existing reservation clashing with a requested window.
type RentalConflict struct {
	VariantID  int32
	RentalID   int32
	RentalCode string
}

// RentalDetail is a rental with its full possession history.
type RentalDetail struct {
	Rental   *Rental         `json:"rental"`
	Tracking []TrackingEntry `json:"tracking"`
	Return   *Return         `json:"return,omitempty"`
}
