package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression implementing Schedule:
// minute hour day-of-month month day-of-week.
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 0 * * *"    - every day at midnight
//   - "0 0 * * 1"    - every Monday at midnight
//
// Next is evaluated in the location of the time it receives, so the
// scheduler's timezone decides what "midnight" means.
type CronExpression struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

// Common cron expression presets.
const (
	EveryMinute      = "* * * * *"
	Every5Minutes    = "*/5 * * * *"
	EveryHour        = "0 * * * *"
	EveryDayMidnight = "0 0 * * *"
	EveryMonday      = "0 0 * * 1"
	FirstOfMonth     = "0 0 1 * *"
)

// ParseCronExpression parses a cron expression string.
// Supports: *, */n, n-m/s, n, n-m, n,m,o
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}

	for i, spec := range specs {
		values, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = values
	}

	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// parseField parses a single cron field into its sorted values.
func parseField(field string, min, max int) ([]int, error) {
	if field == "*" {
		return span(min, max, 1), nil
	}

	if base, stepRaw, ok := strings.Cut(field, "/"); ok {
		step, err := strconv.Atoi(stepRaw)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepRaw)
		}

		start, end := min, max
		switch {
		case base == "*":
		case strings.Contains(base, "-"):
			start, end, err = parseRange(base, min, max)
			if err != nil {
				return nil, err
			}
		default:
			start, err = parseValue(base, min, max)
			if err != nil {
				return nil, err
			}
		}
		return span(start, end, step), nil
	}

	if strings.Contains(field, ",") {
		var result []int
		for _, p := range strings.Split(field, ",") {
			v, err := parseValue(strings.TrimSpace(p), min, max)
			if err != nil {
				return nil, err
			}
			result = append(result, v)
		}
		sort.Ints(result)
		return result, nil
	}

	if strings.Contains(field, "-") {
		start, end, err := parseRange(field, min, max)
		if err != nil {
			return nil, err
		}
		return span(start, end, 1), nil
	}

	v, err := parseValue(field, min, max)
	if err != nil {
		return nil, err
	}
	return []int{v}, nil
}

func parseRange(field string, min, max int) (int, int, error) {
	lo, hi, _ := strings.Cut(field, "-")
	start, err := parseValue(lo, min, max)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseValue(hi, min, max)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, fmt.Errorf("invalid range: %s", field)
	}
	return start, end, nil
}

func parseValue(raw string, min, max int) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", raw)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

func span(start, end, step int) []int {
	result := make([]int, 0, (end-start)/step+1)
	for i := start; i <= end; i += step {
		result = append(result, i)
	}
	return result
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time,
// or the zero time if nothing matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}

	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
