package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestDateWeekday(t *testing.T) {
	cases := []struct {
		date Date
		want int
	}{
		{NewDate(2026, time.March, 2), 0},
		{NewDate(2026, time.March, 3), 1},
		{NewDate(2026, time.March, 1), 6},
		{NewDate(2024, time.February, 29), 3},
	}
	for _, tc := range cases {
		if got := tc.date.Weekday(); got != tc.want {
			t.Fatalf("%s weekday = %d, want %d", tc.date, got, tc.want)
		}
	}
}

func TestDateAddDaysAndParse(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := d.AddDays(1); got != NewDate(2026, time.March, 1) {
		t.Fatalf("AddDays = %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.AddDays(-1).String() != "2026-02-27" {
		t.Fatal("unexpected date ordering")
	}
	if _, err := ParseDate("2026-13-01"); err == nil {
		t.Fatal("expected invalid month to fail")
	}
}

func TestParseClock(t *testing.T) {
	ok := map[string]Clock{"00:00": 0, "09:30": 570, "9:05": 545, "24:00": 1440}
	for in, want := range ok {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %d, %v", in, got, err)
		}
	}
	for _, in := range []string{"24:01", "12:60", "noon", "12:5", "-1:00"} {
		if _, err := ParseClock(in); err == nil {
			t.Fatalf("ParseClock(%q) expected error", in)
		}
	}
	if Clock(570).String() != "09:30" {
		t.Fatalf("String = %s", Clock(570))
	}
}

func TestToInstantRegular(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	got := ToInstant(NewDate(2026, time.March, 2), 9*60, ny)
	want := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got.UTC(), want)
	}
}

func TestToInstantEndOfDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	got := ToInstant(NewDate(2026, time.March, 2), MinutesPerDay, ny)
	want := ToInstant(NewDate(2026, time.March, 3), 0, ny)
	if !got.Equal(want) {
		t.Fatalf("24:00 = %s, want next midnight %s", got, want)
	}
}

func TestToInstantSpringForwardGap(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// 2026-03-08 02:30 does not exist in New York; clocks jump from 02:00 EST to 03:00 EDT.
	got := ToInstant(NewDate(2026, time.March, 8), 2*60+30, ny)
	want := time.Date(2026, 3, 8, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("gap resolved to %s, want %s", got.UTC(), want)
	}
	if _, c := FromInstant(got, ny); c != 3*60 {
		t.Fatalf("expected local 03:00, got %s", c)
	}
}

func TestToInstantFallBackOverlap(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// 2026-11-01 01:30 happens twice; the EDT occurrence comes first.
	got := ToInstant(NewDate(2026, time.November, 1), 90, ny)
	want := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("overlap resolved to %s, want %s", got.UTC(), want)
	}
}

func TestToInstantDayLengthAcrossTransitions(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	if d := DayBounds(NewDate(2026, time.March, 8), ny).Duration(); d != 23*time.Hour {
		t.Fatalf("spring forward day = %s", d)
	}
	if d := DayBounds(NewDate(2026, time.November, 1), ny).Duration(); d != 25*time.Hour {
		t.Fatalf("fall back day = %s", d)
	}
}

func TestFromInstantRoundTrip(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	instant := time.Date(2026, 3, 2, 23, 45, 10, 0, time.UTC)
	d, c := FromInstant(instant, tokyo)
	if d != NewDate(2026, time.March, 3) || c != 8*60+45 {
		t.Fatalf("FromInstant = %s %s", d, c)
	}
	if back := ToInstant(d, c, tokyo); !back.Equal(instant.Truncate(time.Minute)) {
		t.Fatalf("round trip = %s", back.UTC())
	}
	if WeekdayOf(instant, tokyo) != 1 || WeekdayOf(instant, time.UTC) != 0 {
		t.Fatal("weekday must follow the location, not UTC")
	}
}

func TestIntervalOps(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	a := Interval{Start: at(0), End: at(60)}
	b := Interval{Start: at(60), End: at(90)}
	c := Interval{Start: at(30), End: at(45)}

	if Overlaps(a, b) {
		t.Fatal("touching intervals must not overlap")
	}
	if !Overlaps(a, c) || !Overlaps(c, a) {
		t.Fatal("nested intervals overlap")
	}
	if !a.Covers(Interval{Start: at(30), End: at(60)}) || a.Covers(Interval{Start: at(30), End: at(61)}) {
		t.Fatal("Covers must accept an interval ending at End")
	}
	if !a.Covers(c) || a.Covers(b) {
		t.Fatal("unexpected Covers result")
	}
	clipped := Interval{Start: at(-30), End: at(30)}.Clip(a)
	if !clipped.Start.Equal(at(0)) || !clipped.End.Equal(at(30)) {
		t.Fatalf("clip = %+v", clipped)
	}
	if !b.Clip(c).Empty() {
		t.Fatal("disjoint clip must be empty")
	}
}
