package model

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingExpired, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingConfirmed, false},
		{BookingConfirmed, BookingExpired, false},
		{BookingConfirmed, BookingPending, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingCancelled, BookingPending, false},
		{BookingExpired, BookingConfirmed, false},
		{BookingExpired, BookingCancelled, false},
		{BookingPending, BookingPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd string
		want                       bool
	}{
		{"identical", "09:00", "11:00", "09:00", "11:00", true},
		{"contained", "09:00", "12:00", "10:00", "11:00", true},
		{"partial front", "09:00", "11:00", "10:00", "12:00", true},
		{"partial back", "10:00", "12:00", "09:00", "11:00", true},
		{"touching end to start", "09:00", "11:00", "11:00", "13:00", false},
		{"touching start to end", "11:00", "13:00", "09:00", "11:00", false},
		{"disjoint", "08:00", "09:00", "10:00", "11:00", false},
		{"one minute overlap", "09:00", "10:01", "10:00", "11:00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
			// overlap is symmetric
			assert.Equal(t, tc.want, Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd))
		})
	}
}

func TestOverlapsRandomizedPairs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	clock := func(minute int) string {
		return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
	}
	interval := func() (int, int) {
		start := rng.Intn(23 * 60)
		end := start + 1 + rng.Intn(24*60-start-1)
		return start, end
	}

	for i := 0; i < 1000; i++ {
		as, ae := interval()
		bs, be := interval()

		// Half-open rule on minutes is the ground truth; the string
		// comparison must agree, and be symmetric.
		want := as < be && ae > bs
		got := Overlaps(clock(as), clock(ae), clock(bs), clock(be))
		assert.Equal(t, want, got, "[%s,%s) vs [%s,%s)", clock(as), clock(ae), clock(bs), clock(be))
		assert.Equal(t, got, Overlaps(clock(bs), clock(be), clock(as), clock(ae)))
	}
}

func TestEventSlots(t *testing.T) {
	e := Event{AvailableSlots: 10, BookedSlots: 8}
	assert.Equal(t, 2, e.RemainingSlots())
	assert.True(t, e.HasAvailableSlots(2))
	assert.False(t, e.HasAvailableSlots(3))

	full := Event{AvailableSlots: 5, BookedSlots: 5}
	assert.Equal(t, 0, full.RemainingSlots())
	assert.False(t, full.HasAvailableSlots(1))
}

func TestResourceTypeValid(t *testing.T) {
	assert.True(t, ResourceHall.Valid())
	assert.True(t, ResourceEvent.Valid())
	assert.False(t, ResourceType("seat").Valid())
	assert.False(t, ResourceType("").Valid())
}
