package timeutil

import "time"

// DisplayOffsetHours is the owner-facing offset from UTC (WIB).
const DisplayOffsetHours = 7

// WIB is the Western Indonesia Time location (UTC+7).
var WIB *time.Location

func init() {
	var err error
	WIB, err = time.LoadLocation("Asia/Jakarta")
	if err != nil {
		WIB = time.FixedZone("WIB", DisplayOffsetHours*60*60)
	}
}

// ClosedDay is the stored value for display hour 0, which marks a disabled day.
var ClosedDay = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// operating hours are anchored one day after ClosedDay so that a UTC hour of
// zero (display 07:00) never collides with the sentinel.
var hourAnchor = ClosedDay.AddDate(0, 0, 1)

// Now returns the current time in WIB.
func Now() time.Time {
	return time.Now().In(WIB)
}

// ToWIB converts any time to WIB.
func ToWIB(t time.Time) time.Time {
	return t.In(WIB)
}

// ToStorageHour converts a display hour (0-23, WIB) into the stored UTC
// time-of-day value. Display hour 0 maps to ClosedDay unchanged.
func ToStorageHour(displayHour int) time.Time {
	if displayHour == 0 {
		return ClosedDay
	}
	utcHour := (displayHour - DisplayOffsetHours + 24) % 24
	return hourAnchor.Add(time.Duration(utcHour) * time.Hour)
}

// ToDisplayHour is the inverse of ToStorageHour.
func ToDisplayHour(stored time.Time) int {
	if IsClosedDay(stored) {
		return 0
	}
	return (stored.UTC().Hour() + DisplayOffsetHours) % 24
}

// ToDisplayHourOn decodes a stored value of a template row whose enabled
// flag is known. Rows written against the 1970-01-01 anchor store display
// 07:00 as the sentinel itself; on an enabled day that value means 07:00.
func ToDisplayHourOn(stored time.Time, enabled bool) int {
	if enabled && IsClosedDay(stored) {
		return DisplayOffsetHours
	}
	return ToDisplayHour(stored)
}

// IsClosedDay reports whether a stored value is the closed-day sentinel.
func IsClosedDay(stored time.Time) bool {
	return stored.Equal(ClosedDay)
}

// StartOfDay returns local midnight in WIB for the given time.
func StartOfDay(t time.Time) time.Time {
	w := t.In(WIB)
	return time.Date(w.Year(), w.Month(), w.Day(), 0, 0, 0, 0, WIB)
}

// AtHour returns the given WIB calendar day at a whole display hour.
func AtHour(day time.Time, hour int) time.Time {
	w := day.In(WIB)
	return time.Date(w.Year(), w.Month(), w.Day(), hour, 0, 0, 0, WIB)
}

// DaySpan counts the WIB calendar days from start through end, inclusive,
// without listing them. It is zero when end falls on an earlier day.
func DaySpan(start, end time.Time) int64 {
	first, last := StartOfDay(start), StartOfDay(end)
	if last.Before(first) {
		return 0
	}
	y1, m1, d1 := first.Date()
	y2, m2, d2 := last.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC).Unix()
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC).Unix()
	return (b-a)/(24*60*60) + 1
}

// Days lists every WIB calendar day from start through end, inclusive.
func Days(start, end time.Time) []time.Time {
	first := StartOfDay(start)
	last := StartOfDay(end)
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ParseDate parses a YYYY-MM-DD date as WIB midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, WIB)
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)
