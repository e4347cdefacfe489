package domain

import "time"

// SlotDuration is the length of every fitting slot.
const SlotDuration = time.Hour

type FittingStatus string

const (
	FittingStatusPending   FittingStatus = "PENDING"
	FittingStatusConfirmed FittingStatus = "CONFIRMED"
	FittingStatusRejected  FittingStatus = "REJECTED"
	FittingStatusCompleted FittingStatus = "COMPLETED"
	FittingStatusCanceled  FittingStatus = "CANCELED"
)

var fittingTransitions = transitions[FittingStatus]{
	FittingStatusPending:   {FittingStatusConfirmed: {}, FittingStatusRejected: {}, FittingStatusCanceled: {}},
	FittingStatusConfirmed: {FittingStatusCompleted: {}, FittingStatusCanceled: {}},
	FittingStatusRejected:  {},
	FittingStatusCompleted: {},
	FittingStatusCanceled:  {},
}

func (s FittingStatus) Valid() bool {
	_, ok := fittingTransitions[s]
	return ok
}

func (s FittingStatus) Terminal() bool {
	return fittingTransitions.terminal(s)
}

func (s FittingStatus) CanTransitionTo(to FittingStatus) bool {
	return fittingTransitions.allows(s, to)
}

func (s FittingStatus) TransitionTo(to FittingStatus) error {
	return fittingTransitions.check("fitting", s, to)
}

// HoldsSlot reports whether a schedule in this status keeps its slot booked.
func (s FittingStatus) HoldsSlot() bool {
	return s != FittingStatusCanceled && s != FittingStatusRejected
}

// WeeklyAvailability is one weekday row of an owner's recurring template.
// Hours are local display hours; StartHour 0 marks a closed day.
type WeeklyAvailability struct {
	OwnerID   int32 `json:"owner_id"`
	Weekday   int   `json:"weekday"` // 0-6 (Sunday-Saturday)
	Enabled   bool  `json:"enabled"`
	StartHour int   `json:"start_hour"`
	EndHour   int   `json:"end_hour"`
}

// Hours returns the whole display hours the entry opens, [StartHour, EndHour).
func (w WeeklyAvailability) Hours() []int {
	if !w.Enabled || w.StartHour <= 0 || w.EndHour <= w.StartHour {
		return nil
	}
	hours := make([]int, 0, w.EndHour-w.StartHour)
	for h := w.StartHour; h < w.EndHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// OwnerSettings carries per-owner booking preferences.
type OwnerSettings struct {
	OwnerID       int32 `json:"owner_id"`
	IsAutoConfirm bool  `json:"is_auto_confirm"`
}

// FittingSlot is a concrete, bookable one-hour appointment unit.
type FittingSlot struct {
	ID            int32     `json:"id"`
	OwnerID       int32     `json:"owner_id"`
	DateTime      time.Time `json:"date_time"`
	Duration      int       `json:"duration_minutes"`
	IsBooked      bool      `json:"is_booked"`
	IsAutoConfirm bool      `json:"is_auto_confirm"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s FittingSlot) Window() TimeWindow {
	d := time.Duration(s.Duration) * time.Minute
	if d == 0 {
		d = SlotDuration
	}
	return TimeWindow{Start: s.DateTime, End: s.DateTime.Add(d)}
}

// ScheduleBlock is an ad-hoc closure, never materialized into slots.
type ScheduleBlock struct {
	ID        int32     `json:"id"`
	OwnerID   int32     `json:"owner_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (b ScheduleBlock) Window() TimeWindow {
	return TimeWindow{Start: b.StartTime, End: b.EndTime}
}

// FittingSchedule is a customer's appointment against one slot.
type FittingSchedule struct {
	ID         int32         `json:"id"`
	SlotID     int32         `json:"slot_id"`
	OwnerID    int32         `json:"owner_id"`
	CustomerID int32         `json:"customer_id"`
	Status     FittingStatus `json:"status"`
	Note       string        `json:"note"`
	ProductIDs []int32       `json:"product_ids,omitempty"`
	Slot       *FittingSlot  `json:"slot,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
