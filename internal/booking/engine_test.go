package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	m, err := parseClock("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, m)

	m, err = parseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, m)

	m, err = parseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, m)

	for _, bad := range []string{"", "9:00", "24:00", "12:60", "12.30", "noon"} {
		_, err := parseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidInterval, "input %q", bad)
	}
}

func TestBillableHours(t *testing.T) {
	cases := []struct {
		start, end string
		want       int
	}{
		{"09:00", "10:00", 1},
		{"09:00", "10:30", 2}, // partial hours round up
		{"09:00", "09:01", 1},
		{"00:00", "23:59", 24},
		{"14:00", "18:00", 4},
	}
	for _, tc := range cases {
		got, err := billableHours(tc.start, tc.end)
		require.NoError(t, err, "%s-%s", tc.start, tc.end)
		assert.Equal(t, tc.want, got, "%s-%s", tc.start, tc.end)
	}
}

func TestBillableHoursRejectsEmptyOrReversed(t *testing.T) {
	_, err := billableHours("10:00", "10:00")
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = billableHours("11:00", "10:00")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestHallAmountCents(t *testing.T) {
	got, err := hallAmountCents("09:00", "11:00", 500_00)
	require.NoError(t, err)
	assert.Equal(t, int64(1000_00), got)

	// the rounded-up hour is billed in full
	got, err = hallAmountCents("09:00", "11:30", 500_00)
	require.NoError(t, err)
	assert.Equal(t, int64(1500_00), got)
}
