package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/calendar"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
)

// Query selects the slots of one provider offering one service at one location.
// Either Date (a local day in the location's timezone) or RangeStart/RangeEnd must be set.
type Query struct {
	TenantID   string
	ServiceID  string
	ProviderID string
	LocationID string
	Date       *calendar.Date
	RangeStart time.Time
	RangeEnd   time.Time
	// Now anchors the booking rule window; zero means the engine clock.
	Now time.Time
}

func (q Query) validate() error {
	required := [][2]string{
		{"tenant_id", q.TenantID},
		{"service_id", q.ServiceID},
		{"provider_id", q.ProviderID},
		{"location_id", q.LocationID},
	}
	for _, f := range required {
		if strings.TrimSpace(f[1]) == "" {
			return fmt.Errorf("%w: %s is required", model.ErrInvalidQuery, f[0])
		}
	}
	if q.Date == nil && !q.RangeStart.Before(q.RangeEnd) {
		return fmt.Errorf("%w: range start must be before range end", model.ErrInvalidQuery)
	}
	return nil
}

// Plan is everything derived from the schedule for one query: resolved settings, the slot grid of
// the whole local days around the range, and the grid slots lying inside the range. Neither slot
// list has the booking rule applied.
type Plan struct {
	Location   *time.Location
	Range      calendar.Interval
	Provider   model.Provider
	Duration   time.Duration
	Step       time.Duration
	Capacity   int
	PriceCents int64
	Rule       model.BookingRule
	Grid       []model.Slot
	Slots      []model.Slot
}

// BuildPlan loads the schedule through src and generates the grid. The grid is anchored on whole
// local days around the range, so a slot keeps the same start whatever range it is queried with.
func BuildPlan(ctx context.Context, src Source, q Query) (Plan, error) {
	if err := q.validate(); err != nil {
		return Plan{}, err
	}

	location, err := src.GetLocation(ctx, q.TenantID, q.LocationID)
	if err != nil {
		return Plan{}, fmt.Errorf("get location: %w", err)
	}
	loc, err := time.LoadLocation(location.Timezone)
	if err != nil || location.Timezone == "" {
		return Plan{}, fmt.Errorf("%w: location %s has unknown timezone %q", model.ErrInvalidScheduleData, location.ID, location.Timezone)
	}

	rng := calendar.Interval{Start: q.RangeStart, End: q.RangeEnd}
	if q.Date != nil {
		rng = calendar.DayBounds(*q.Date, loc)
	}

	provider, err := src.GetProvider(ctx, q.TenantID, q.ProviderID)
	if err != nil {
		return Plan{}, fmt.Errorf("get provider: %w", err)
	}
	service, err := src.GetService(ctx, q.TenantID, q.ServiceID)
	if err != nil {
		return Plan{}, fmt.Errorf("get service: %w", err)
	}
	offering, err := src.GetProviderService(ctx, q.TenantID, q.ProviderID, q.ServiceID)
	if err != nil {
		return Plan{}, fmt.Errorf("get provider service: %w", err)
	}
	serviceRule, tenantRule, err := src.GetBookingRule(ctx, q.TenantID, q.ServiceID)
	if err != nil {
		return Plan{}, fmt.Errorf("get booking rule: %w", err)
	}

	plan := Plan{
		Location:   loc,
		Range:      rng,
		Provider:   provider,
		Duration:   resolveDuration(service, offering),
		Capacity:   resolveCapacity(service, offering),
		PriceCents: offering.PriceCents,
		Rule:       ResolveRule(serviceRule, tenantRule),
	}
	plan.Step = time.Duration(service.SlotStepMinutes) * time.Minute
	if plan.Step <= 0 {
		plan.Step = plan.Duration
	}
	if !provider.IsActive || plan.Duration <= 0 {
		return plan, nil
	}

	firstDay, _ := calendar.FromInstant(rng.Start, loc)
	lastDay, _ := calendar.FromInstant(rng.End, loc)
	grid := calendar.Interval{
		Start: calendar.ToInstant(firstDay.AddDays(-1), 0, loc),
		End:   calendar.ToInstant(lastDay.AddDays(1), calendar.MinutesPerDay, loc),
	}

	hours, err := src.GetWorkingHours(ctx, q.TenantID, q.ProviderID, q.LocationID)
	if err != nil {
		return Plan{}, fmt.Errorf("get working hours: %w", err)
	}
	closures, err := src.GetClosures(ctx, q.TenantID, q.LocationID, grid.Start, grid.End)
	if err != nil {
		return Plan{}, fmt.Errorf("get closures: %w", err)
	}
	open, err := OpenIntervals(hours, closures, loc, grid.Start, grid.End)
	if err != nil {
		return Plan{}, err
	}
	plan.Grid = GenerateSlots(open, plan.Duration, plan.Step)
	plan.Slots = slotsWithin(plan.Grid, rng)
	return plan, nil
}

func resolveDuration(s model.Service, ps model.ProviderService) time.Duration {
	minutes := s.DefaultDurationMinutes
	if ps.DurationMinutes != nil {
		minutes = *ps.DurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func resolveCapacity(s model.Service, ps model.ProviderService) int {
	c := s.DefaultCapacity
	if ps.CapacityOverride != nil {
		c = *ps.CapacityOverride
	}
	if c < 1 {
		return 1
	}
	return c
}
