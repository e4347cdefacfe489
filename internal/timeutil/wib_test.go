package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourRoundTrip(t *testing.T) {
	for h := 1; h <= 23; h++ {
		stored := ToStorageHour(h)
		assert.False(t, IsClosedDay(stored), "hour %d must not collide with the closed-day sentinel", h)
		assert.Equal(t, h, ToDisplayHour(stored), "round trip for hour %d", h)
	}
}

func TestClosedDaySentinel(t *testing.T) {
	stored := ToStorageHour(0)
	assert.True(t, stored.Equal(ClosedDay))
	assert.Equal(t, 0, ToDisplayHour(stored))
}

func TestToStorageHour_UTCConversion(t *testing.T) {
	assert.Equal(t, 2, ToStorageHour(9).UTC().Hour())
	assert.Equal(t, 0, ToStorageHour(7).UTC().Hour())
	assert.Equal(t, 23, ToStorageHour(6).UTC().Hour())
	assert.Equal(t, 16, ToStorageHour(23).UTC().Hour())
}

func TestAtHourAndDays(t *testing.T) {
	day, err := ParseDate("2026-06-01")
	require.NoError(t, err)

	slot := AtHour(day, 9)
	assert.Equal(t, time.Date(2026, time.June, 1, 2, 0, 0, 0, time.UTC), slot.UTC())
	assert.Equal(t, time.Monday, slot.Weekday())

	days := Days(day, day.AddDate(0, 0, 2))
	require.Len(t, days, 3)
	assert.Equal(t, time.Wednesday, days[2].Weekday())

	assert.Len(t, Days(day, day), 1)
}

func TestDaySpan(t *testing.T) {
	day, err := ParseDate("2026-06-01")
	require.NoError(t, err)

	assert.Equal(t, int64(1), DaySpan(day, day.Add(23*time.Hour)))
	assert.Equal(t, int64(3), DaySpan(day, day.AddDate(0, 0, 2)))
	assert.Equal(t, int64(0), DaySpan(day, day.AddDate(0, 0, -1)))
	assert.Equal(t, int64(len(Days(day, day.AddDate(0, 0, 91)))), DaySpan(day, day.AddDate(0, 0, 91)))

	first := time.Date(1, time.January, 1, 0, 0, 0, 0, WIB)
	last := time.Date(9999, time.December, 31, 0, 0, 0, 0, WIB)
	assert.Equal(t, int64(3652059), DaySpan(first, last))
}

// Stored hours sit on 1970-01-02 so that display 07:00 (00:00 UTC) differs
// from the closed-day value on 1970-01-01.
func TestToStorageHour_SevenIsNotClosed(t *testing.T) {
	assert.Equal(t, time.Date(1970, time.January, 2, 0, 0, 0, 0, time.UTC), ToStorageHour(7))
	assert.False(t, IsClosedDay(ToStorageHour(7)))
	assert.Equal(t, 7, ToDisplayHour(ToStorageHour(7)))
}

func TestToDisplayHourOn_EpochAnchoredRows(t *testing.T) {
	assert.Equal(t, 7, ToDisplayHourOn(ClosedDay, true))
	assert.Equal(t, 0, ToDisplayHourOn(ClosedDay, false))
	assert.Equal(t, 9, ToDisplayHourOn(time.Date(1970, 1, 1, 2, 0, 0, 0, time.UTC), true))
	assert.Equal(t, 9, ToDisplayHourOn(ToStorageHour(9), true))
}
