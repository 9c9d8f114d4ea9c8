package availability

import (
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/calendar"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
)

// GenerateSlots tiles every open interval from its start. Each slot is exactly duration long and
// starts step after the previous one; a remainder shorter than duration is dropped.
// A non-positive duration yields no slots, a non-positive step defaults to duration.
func GenerateSlots(open []calendar.Interval, duration, step time.Duration) []model.Slot {
	if duration <= 0 {
		return nil
	}
	if step <= 0 {
		step = duration
	}

	var slots []model.Slot
	for _, iv := range open {
		for t := iv.Start; !t.Add(duration).After(iv.End); t = t.Add(step) {
			slots = append(slots, model.Slot{StartTime: t, EndTime: t.Add(duration), Available: true})
		}
	}
	return slots
}

// MarkOccupied flags slots whose overlapping active appointments already fill capacity.
// busy must be sorted by start.
func MarkOccupied(slots []model.Slot, busy []model.Appointment, capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	for i := range slots {
		sv := calendar.Interval{Start: slots[i].StartTime, End: slots[i].EndTime}
		taken := 0
		for _, a := range busy {
			if !a.StartAt.Before(sv.End) {
				break
			}
			if calendar.Overlaps(sv, calendar.Interval{Start: a.StartAt, End: a.EndAt}) {
				taken++
			}
		}
		if taken >= capacity {
			slots[i].Available = false
		}
	}
}

// slotsWithin keeps the slots that lie entirely inside r.
func slotsWithin(slots []model.Slot, r calendar.Interval) []model.Slot {
	out := slots[:0:0]
	for _, s := range slots {
		if r.Covers(calendar.Interval{Start: s.StartTime, End: s.EndTime}) {
			out = append(out, s)
		}
	}
	return out
}
