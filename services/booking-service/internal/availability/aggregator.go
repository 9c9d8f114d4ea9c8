package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/calendar"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
)

// OpenIntervals expands weekly working hours into the instants they cover within
// [rangeStart, rangeEnd), minus location closures. The result is ordered and non-overlapping,
// with touching intervals merged.
//
// Malformed rows fail the whole call with model.ErrInvalidScheduleData; nothing is coerced.
func OpenIntervals(hours []model.WorkingHours, closures []model.LocationClosure, loc *time.Location, rangeStart, rangeEnd time.Time) ([]calendar.Interval, error) {
	byWeekday, err := validateHours(hours)
	if err != nil {
		return nil, err
	}
	blocks, err := closureIntervals(closures)
	if err != nil {
		return nil, err
	}
	bounds := calendar.Interval{Start: rangeStart, End: rangeEnd}
	if bounds.Empty() || len(hours) == 0 {
		return nil, nil
	}

	first, _ := calendar.FromInstant(rangeStart, loc)
	last, _ := calendar.FromInstant(rangeEnd, loc)

	var open []calendar.Interval
	for day := first; !last.Before(day); day = day.AddDays(1) {
		for _, wh := range byWeekday[day.Weekday()] {
			iv := calendar.Interval{
				Start: calendar.ToInstant(day, calendar.Clock(wh.StartMinute), loc),
				End:   calendar.ToInstant(day, calendar.Clock(wh.EndMinute), loc),
			}.Clip(bounds)
			if !iv.Empty() {
				open = append(open, iv)
			}
		}
	}

	return subtract(merge(open), merge(blocks)), nil
}

// validateHours groups rows by weekday, each group sorted by start minute.
func validateHours(hours []model.WorkingHours) ([7][]model.WorkingHours, error) {
	var byWeekday [7][]model.WorkingHours
	for _, wh := range hours {
		if wh.Weekday < 0 || wh.Weekday > 6 {
			return byWeekday, fmt.Errorf("%w: weekday %d out of range", model.ErrInvalidScheduleData, wh.Weekday)
		}
		if wh.StartMinute < 0 || wh.EndMinute > calendar.MinutesPerDay || wh.StartMinute >= wh.EndMinute {
			return byWeekday, fmt.Errorf("%w: working hours %d-%d on weekday %d", model.ErrInvalidScheduleData, wh.StartMinute, wh.EndMinute, wh.Weekday)
		}
		byWeekday[wh.Weekday] = append(byWeekday[wh.Weekday], wh)
	}
	for wd, rows := range byWeekday {
		sort.Slice(rows, func(i, j int) bool { return rows[i].StartMinute < rows[j].StartMinute })
		for i := 1; i < len(rows); i++ {
			if rows[i].StartMinute < rows[i-1].EndMinute {
				return byWeekday, fmt.Errorf("%w: overlapping working hours on weekday %d", model.ErrInvalidScheduleData, wd)
			}
		}
	}
	return byWeekday, nil
}

func closureIntervals(closures []model.LocationClosure) ([]calendar.Interval, error) {
	out := make([]calendar.Interval, 0, len(closures))
	for _, c := range closures {
		if !c.StartsAt.Before(c.EndsAt) {
			return nil, fmt.Errorf("%w: closure %s..%s", model.ErrInvalidScheduleData, c.StartsAt.Format(time.RFC3339), c.EndsAt.Format(time.RFC3339))
		}
		out = append(out, calendar.Interval{Start: c.StartsAt, End: c.EndsAt})
	}
	return out, nil
}

// merge sorts and coalesces overlapping or touching intervals.
func merge(ivs []calendar.Interval) []calendar.Interval {
	if len(ivs) == 0 {
		return nil
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })
	out := []calendar.Interval{ivs[0]}
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if iv.Start.After(last.End) {
			out = append(out, iv)
			continue
		}
		if iv.End.After(last.End) {
			last.End = iv.End
		}
	}
	return out
}

// subtract removes blocks from open in one pass. Both inputs must be merged.
func subtract(open, blocks []calendar.Interval) []calendar.Interval {
	var out []calendar.Interval
	j := 0
	for _, iv := range open {
		cur := iv.Start
		for j < len(blocks) && !blocks[j].End.After(cur) {
			j++
		}
		// A block may span several open intervals, so scan from j without consuming.
		for k := j; k < len(blocks) && blocks[k].Start.Before(iv.End); k++ {
			if blocks[k].Start.After(cur) {
				out = append(out, calendar.Interval{Start: cur, End: blocks[k].Start})
			}
			if blocks[k].End.After(cur) {
				cur = blocks[k].End
			}
		}
		if cur.Before(iv.End) {
			out = append(out, calendar.Interval{Start: cur, End: iv.End})
		}
	}
	return out
}
