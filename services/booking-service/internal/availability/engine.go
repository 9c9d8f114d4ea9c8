package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/metrics"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/availability")

// DefaultMaxRange bounds how far apart RangeStart and RangeEnd may be.
const DefaultMaxRange = 62 * 24 * time.Hour

// Engine answers slot queries. It holds no schedule state; every call reads the source again.
type Engine struct {
	src       Source
	logger    *slog.Logger
	metrics   *metrics.Metrics
	occupancy Occupancy
	maxRange  time.Duration
	now       func() time.Time
}

type Option func(*Engine)

// WithOccupancy marks slots whose capacity is already taken as unavailable.
func WithOccupancy(o Occupancy) Option {
	return func(e *Engine) { e.occupancy = o }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithMaxRange(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxRange = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(src Source, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		src:      src,
		logger:   logger,
		maxRange: DefaultMaxRange,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListAvailableSlots returns the bookable slots for q ordered by start.
func (e *Engine) ListAvailableSlots(ctx context.Context, q Query) (slots []model.Slot, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "availability.ListAvailableSlots", trace.WithAttributes(
		attribute.String("tenant.id", q.TenantID),
		attribute.String("provider.id", q.ProviderID),
		attribute.String("service.id", q.ServiceID),
		attribute.String("location.id", q.LocationID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("slots.count", len(slots)))
		span.End()
		e.metrics.ObserveSlotQuery(metrics.Outcome(err), time.Since(start).Seconds(), len(slots))
	}()

	if err := q.validate(); err != nil {
		return nil, err
	}
	if q.Date == nil && q.RangeEnd.Sub(q.RangeStart) > e.maxRange {
		return nil, fmt.Errorf("%w: range longer than %s", model.ErrInvalidQuery, e.maxRange)
	}
	if q.Now.IsZero() {
		q.Now = e.now()
	}

	plan, err := BuildPlan(ctx, e.src, q)
	if err != nil {
		if errors.Is(err, model.ErrInvalidScheduleData) {
			e.logger.Error("invalid schedule data",
				"tenant_id", q.TenantID,
				"provider_id", q.ProviderID,
				"location_id", q.LocationID,
				"err", err,
			)
		}
		return nil, err
	}

	slots = FilterByRule(plan.Slots, plan.Rule, q.Now)
	if e.occupancy != nil && len(slots) > 0 && !(plan.Capacity == 1 && plan.Rule.AllowDoubleBook) {
		busy, err := e.occupancy.OverlappingAppointments(ctx, q.TenantID, q.ProviderID, nil, slots[0].StartTime, slots[len(slots)-1].EndTime)
		if err != nil {
			return nil, fmt.Errorf("load occupancy: %w", err)
		}
		MarkOccupied(slots, busy, plan.Capacity)
	}

	e.logger.Debug("slots listed",
		"tenant_id", q.TenantID,
		"provider_id", q.ProviderID,
		"service_id", q.ServiceID,
		"count", len(slots),
	)
	return slots, nil
}
