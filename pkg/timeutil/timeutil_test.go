package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDay(t *testing.T) {
	almaty := CalendarIn(time.FixedZone("Asia/Almaty", 5*60*60))
	moment := time.Date(2026, 3, 10, 20, 15, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-11", almaty.FormatDay(moment))
	assert.Equal(t, "2026-03-10", UTCCalendar().FormatDay(moment))
	assert.Equal(t, "01:15", almaty.FormatClock(moment))
}

func TestNewCalendar(t *testing.T) {
	cal, err := NewCalendar("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cal.Location())

	_, err = NewCalendar("Mars/Olympus")
	assert.Error(t, err)
}

func TestDaysBetweenAndSameDay(t *testing.T) {
	cal := UTCCalendar()
	a := time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 1, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, 1, cal.DaysBetween(a, b))
	assert.False(t, cal.IsSameDay(a, b))
	assert.True(t, cal.IsSameDay(b, b.Add(time.Hour)))
}

func TestDaysAgo(t *testing.T) {
	cal := UTCCalendar()
	now := time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), cal.DaysAgo(now, 30))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", FormatDate(d))

	_, err = ParseDate("05.03.2026")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at, FixedClock(at)())
}
