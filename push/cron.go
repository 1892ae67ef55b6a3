package push

import (
	"fmt"
	"strings"
	"time"

	cron "github.com/robfig/cron/v3"
)

// CronSchedule is a five-field (minute, hour, day-of-month, month,
// day-of-week) calendar schedule, evaluated once per minute. It wraps
// robfig/cron's field parser for the individual fields but implements
// its own Matches, because robfig/cron (like standard cron) treats a
// restricted day-of-month AND day-of-week as an AND, while the appliance
// scheduler this framework targets treats that combination as an OR: a
// tick matches if either field matches, once both are non-"*".
type CronSchedule struct {
	raw     string
	minute  cron.Schedule
	hour    cron.Schedule
	dom     cron.Schedule
	month   cron.Schedule
	dow     cron.Schedule
	domStar bool
	dowStar bool
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCronSchedule parses a five-field pattern ("minute hour
// day-of-month month day-of-week"), supporting "*", "a-b" ranges, comma
// lists, and "/n" steps per field.
func ParseCronSchedule(pattern string) (*CronSchedule, error) {
	fields := strings.Fields(pattern)
	if len(fields) != 5 {
		return nil, fmt.Errorf("push: cron pattern %q must have exactly 5 fields", pattern)
	}

	sched, err := cronParser.Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("push: invalid cron pattern %q: %w", pattern, err)
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("push: unsupported cron schedule %q", pattern)
	}

	return &CronSchedule{
		raw:     pattern,
		minute:  &fieldSchedule{bits: spec.Minute, kind: fieldMinute},
		hour:    &fieldSchedule{bits: spec.Hour, kind: fieldHour},
		dom:     &fieldSchedule{bits: spec.Dom, kind: fieldDom},
		month:   &fieldSchedule{bits: spec.Month, kind: fieldMonth},
		dow:     &fieldSchedule{bits: spec.Dow, kind: fieldDow},
		domStar: fields[2] == "*",
		dowStar: fields[4] == "*",
	}, nil
}

// String returns the original pattern text.
func (c *CronSchedule) String() string { return c.raw }

// fieldKind selects which calendar field a fieldSchedule tests.
type fieldKind int

const (
	fieldMinute fieldKind = iota
	fieldHour
	fieldDom
	fieldMonth
	fieldDow
)

// fieldSchedule tests a single calendar field's bitmask against a given
// time, reusing the bitmask robfig/cron already parsed.
type fieldSchedule struct {
	bits uint64
	kind fieldKind
}

func (f *fieldSchedule) matches(t time.Time) bool {
	var v int
	switch f.kind {
	case fieldMinute:
		v = t.Minute()
	case fieldHour:
		v = t.Hour()
	case fieldDom:
		v = t.Day()
	case fieldMonth:
		v = int(t.Month())
	case fieldDow:
		v = int(t.Weekday())
	}
	return f.bits&(1<<uint(v)) != 0
}

// Next satisfies cron.Schedule but is unused directly; Matches is the
// entry point this package drives off a once-a-minute tick.
func (f *fieldSchedule) Next(t time.Time) time.Time { return t }

// Matches reports whether t (truncated to the minute) satisfies the
// schedule. When both day-of-month and day-of-week are restricted (not
// "*"), the two are combined with OR rather than AND.
func (c *CronSchedule) Matches(t time.Time) bool {
	if !c.minute.(*fieldSchedule).matches(t) {
		return false
	}
	if !c.hour.(*fieldSchedule).matches(t) {
		return false
	}
	if !c.month.(*fieldSchedule).matches(t) {
		return false
	}

	domMatch := c.dom.(*fieldSchedule).matches(t)
	dowMatch := c.dow.(*fieldSchedule).matches(t)

	switch {
	case c.domStar && c.dowStar:
		return true
	case c.domStar:
		return dowMatch
	case c.dowStar:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}
