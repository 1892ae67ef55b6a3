package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronScheduleQuarterHourPattern(t *testing.T) {
	sched, err := ParseCronSchedule("*/15 * * * *")
	require.NoError(t, err)

	base := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	for minute := 0; minute < 60; minute++ {
		tm := base.Add(time.Duration(minute) * time.Minute)
		want := minute%15 == 0
		assert.Equal(t, want, sched.Matches(tm), "minute %d", minute)
	}
}

func TestCronScheduleWeekdayBusinessHours(t *testing.T) {
	sched, err := ParseCronSchedule("0 9-17 * * 1-5")
	require.NoError(t, err)

	weekday := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC) // Monday
	assert.True(t, sched.Matches(weekday))

	weekend := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) // Saturday
	assert.False(t, sched.Matches(weekend))

	afterHours := time.Date(2026, 7, 27, 20, 0, 0, 0, time.UTC)
	assert.False(t, sched.Matches(afterHours))
}

func TestCronScheduleBothDayFieldsRestrictedUsesOr(t *testing.T) {
	sched, err := ParseCronSchedule("0 0 1 * 0")
	require.NoError(t, err)

	firstOfMonth := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) // Wednesday
	assert.True(t, sched.Matches(firstOfMonth))

	sunday := time.Date(2026, 7, 26, 0, 0, 0, 0, time.UTC) // Sunday, not the 1st
	assert.True(t, sched.Matches(sunday))

	neither := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC) // Wednesday the 15th
	assert.False(t, sched.Matches(neither))
}

func TestCronScheduleRejectsWrongFieldCount(t *testing.T) {
	_, err := ParseCronSchedule("* * *")
	assert.Error(t, err)
}
