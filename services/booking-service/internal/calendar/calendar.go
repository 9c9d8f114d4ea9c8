// Package calendar converts between local wall-clock schedules and absolute instants.
// Nothing here reads the host timezone; every conversion takes an explicit *time.Location.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the largest valid Clock; it denotes the end of a local day.
const MinutesPerDay = 24 * 60

// Date is a civil calendar date with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return dateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func dateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return dateOf(t), nil
}

func (d Date) utcNoon() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// Weekday returns 0 for Monday through 6 for Sunday.
func (d Date) Weekday() int {
	return mondayFirst(d.utcNoon().Weekday())
}

func (d Date) AddDays(n int) Date {
	return dateOf(d.utcNoon().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.utcNoon().Before(o.utcNoon())
}

func (d Date) String() string {
	return d.utcNoon().Format(time.DateOnly)
}

// Clock is minutes since local midnight, 0..MinutesPerDay.
type Clock int

// ParseClock parses HH:MM; 24:00 is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("parse clock %q: want HH:MM", s)
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h < 0 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: want HH:MM", s)
	}
	c := Clock(h*60 + m)
	if c > MinutesPerDay {
		return 0, fmt.Errorf("parse clock %q: past end of day", s)
	}
	return c, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ToInstant resolves a local wall time to an instant in loc.
//
// A wall time that occurs twice (clocks fall back) resolves to the earlier instant.
// A wall time that is skipped (clocks spring forward) resolves to the transition instant,
// the first valid instant after the nominal time.
func ToInstant(d Date, c Clock, loc *time.Location) time.Time {
	wall := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Add(time.Duration(c) * time.Minute)

	_, offBefore := wall.Add(-24 * time.Hour).In(loc).Zone()
	_, offAfter := wall.Add(24 * time.Hour).In(loc).Zone()
	early := wall.Add(-time.Duration(offBefore) * time.Second)
	late := wall.Add(-time.Duration(offAfter) * time.Second)
	if late.Before(early) {
		early, late = late, early
	}

	switch {
	case sameWall(early, wall, loc):
		return early.In(loc)
	case sameWall(late, wall, loc):
		return late.In(loc)
	}

	// Gap: the later candidate falls in the new offset period, which starts at the transition.
	start, _ := late.In(loc).ZoneBounds()
	if start.IsZero() {
		return late.In(loc)
	}
	return start.In(loc)
}

func sameWall(t, wall time.Time, loc *time.Location) bool {
	lt := t.In(loc)
	y, m, d := lt.Date()
	wy, wm, wd := wall.Date()
	return y == wy && m == wm && d == wd && lt.Hour() == wall.Hour() && lt.Minute() == wall.Minute()
}

// FromInstant returns the local date and minute of t in loc. Seconds are truncated.
func FromInstant(t time.Time, loc *time.Location) (Date, Clock) {
	lt := t.In(loc)
	return dateOf(lt), Clock(lt.Hour()*60 + lt.Minute())
}

// WeekdayOf returns the local weekday of t, 0=Monday..6=Sunday.
func WeekdayOf(t time.Time, loc *time.Location) int {
	return mondayFirst(t.In(loc).Weekday())
}

func mondayFirst(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// DayBounds is the instant range covered by local day d.
func DayBounds(d Date, loc *time.Location) Interval {
	return Interval{Start: ToInstant(d, 0, loc), End: ToInstant(d, MinutesPerDay, loc)}
}
