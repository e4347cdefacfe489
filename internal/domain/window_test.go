package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time {
	return time.Date(2026, time.June, d, 0, 0, 0, 0, time.UTC)
}

func TestTimeWindow_Overlaps(t *testing.T) {
	base := NewTimeWindow(day(1), day(5))

	tests := []struct {
		name  string
		other TimeWindow
		want  bool
	}{
		{"starts inside", NewTimeWindow(day(3), day(7)), true},
		{"ends inside", NewTimeWindow(day(0), day(2)), true},
		{"fully contains", NewTimeWindow(day(0), day(9)), true},
		{"fully inside", NewTimeWindow(day(2), day(3)), true},
		{"touches end", NewTimeWindow(day(5), day(8)), true},
		{"touches start", NewTimeWindow(day(0).Add(-24*time.Hour), day(1)), true},
		{"after", NewTimeWindow(day(6), day(8)), false},
		{"before", NewTimeWindow(day(0).Add(-48*time.Hour), day(0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base), "overlap must be symmetric")
		})
	}
}

func TestTimeWindow_Valid(t *testing.T) {
	assert.True(t, NewTimeWindow(day(1), day(2)).Valid())
	assert.False(t, NewTimeWindow(day(2), day(2)).Valid())
	assert.False(t, NewTimeWindow(day(3), day(2)).Valid())
	assert.False(t, TimeWindow{}.Valid())
}

func TestTimeWindow_Contains(t *testing.T) {
	w := NewTimeWindow(day(1), day(5))
	assert.True(t, w.Contains(day(1)))
	assert.True(t, w.Contains(day(5)))
	assert.False(t, w.Contains(day(6)))
}
