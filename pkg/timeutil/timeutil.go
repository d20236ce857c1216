// Package timeutil provides the reference-timezone calendar used for day
// boundaries (streaks, daily goals, activity calendar).
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// SystemClock returns time.Now in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Calendar truncates instants to calendar days in one reference timezone.
// Days are represented as midnight UTC of the local calendar date so they
// compare and store the same way regardless of the server's zone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the named IANA zone. Empty name means UTC.
func NewCalendar(name string) (*Calendar, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return &Calendar{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return &Calendar{loc: loc}, nil
}

// UTCCalendar returns a calendar for UTC.
func UTCCalendar() *Calendar {
	return &Calendar{loc: time.UTC}
}

// CalendarIn wraps an already-loaded location.
func CalendarIn(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc}
}

// Location returns the reference timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Day returns the calendar date of t.
func (c *Calendar) Day(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns the instant local midnight begins for t's date.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// DaysAgo returns the instant local midnight began n days before t.
func (c *Calendar) DaysAgo(t time.Time, n int) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, -n)
}

// IsSameDay reports whether both instants fall on the same local date.
func (c *Calendar) IsSameDay(a, b time.Time) bool {
	return c.Day(a).Equal(c.Day(b))
}

// DaysBetween returns whole calendar days from a to b.
func (c *Calendar) DaysBetween(a, b time.Time) int {
	return int(c.Day(b).Sub(c.Day(a)).Hours() / 24)
}

// FormatDay renders t's local date as YYYY-MM-DD.
func (c *Calendar) FormatDay(t time.Time) string {
	return c.Day(t).Format(DateLayout)
}

// FormatDate renders a calendar date produced by Day.
func FormatDate(day time.Time) string {
	return day.Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD into a calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

// FormatClock renders the local wall-clock time of t as HH:MM.
func (c *Calendar) FormatClock(t time.Time) string {
	return t.In(c.loc).Format("15:04")
}
