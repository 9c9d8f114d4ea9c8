// Package reservation turns a slot into an appointment. The schedule is re-derived inside the
// transaction, so a reservation only succeeds for a slot the availability engine would offer.
package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/db"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/availability"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/metrics"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/outbox"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/reservation")

const DefaultTimeout = 5 * time.Second

// Tx is the transactional view of the store. Reads see the transaction's snapshot.
type Tx interface {
	availability.Source
	availability.Occupancy
	// LockSchedule takes transaction scoped locks on keys, in the order given.
	LockSchedule(ctx context.Context, keys ...string) error
	// LockIdempotencyKey claims key for the tenant and returns the appointment id stored by an
	// earlier finalized attempt, or "" for a fresh key.
	LockIdempotencyKey(ctx context.Context, tenantID, key string) (string, error)
	FinalizeIdempotency(ctx context.Context, tenantID, key, appointmentID string) error
	GetAppointment(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error)
	// InsertAppointment returns an error wrapping model.ErrSlotConflict when an exclusion
	// constraint rejects the row.
	InsertAppointment(ctx context.Context, appt model.Appointment) error
	InsertOutboxEvent(ctx context.Context, evt outbox.Event) error
}

// Store runs fn in one transaction, committing when fn returns nil and rolling back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Request struct {
	TenantID   string
	ServiceID  string
	ProviderID string
	LocationID string
	// ResourceID optionally names a room or chair that must also be free.
	ResourceID          *string
	Start               time.Time
	CustomerRef         string
	Now                 time.Time
	RequireConfirmation bool
	IdempotencyKey      string
}

func (r Request) validate() error {
	switch {
	case strings.TrimSpace(r.TenantID) == "":
		return fmt.Errorf("%w: tenant_id is required", model.ErrInvalidQuery)
	case r.ServiceID == "" || r.ProviderID == "" || r.LocationID == "":
		return fmt.Errorf("%w: service_id, provider_id and location_id are required", model.ErrInvalidQuery)
	case r.Start.IsZero():
		return fmt.Errorf("%w: start is required", model.ErrInvalidQuery)
	case strings.TrimSpace(r.CustomerRef) == "":
		return fmt.Errorf("%w: customer_ref is required", model.ErrInvalidQuery)
	case r.ResourceID != nil && *r.ResourceID == "":
		return fmt.Errorf("%w: resource_id must not be empty", model.ErrInvalidQuery)
	}
	return nil
}

type Result struct {
	Appointment model.Appointment
	// Replayed is set when the idempotency key matched an earlier reservation.
	Replayed bool
}

type Reserver struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

type Option func(*Reserver)

func WithTimeout(d time.Duration) Option {
	return func(r *Reserver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reserver) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reserver) { r.now = now }
}

func NewReserver(store Store, logger *slog.Logger, opts ...Option) *Reserver {
	r := &Reserver{
		store:   store,
		logger:  logger,
		timeout: DefaultTimeout,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reserve books req.Start for the requested service in a single transaction bounded by the
// reserver timeout. Business rejections are returned as model errors; a contended or slow
// transaction is rolled back and reported as model.ErrReservationTimeout.
func (r *Reserver) Reserve(ctx context.Context, req Request) (res Result, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "reservation.Reserve", trace.WithAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.String("provider.id", req.ProviderID),
		attribute.String("service.id", req.ServiceID),
		attribute.String("slot.start", req.Start.UTC().Format(time.RFC3339)),
	))
	defer func() {
		outcome := metrics.Outcome(err)
		if err == nil && res.Replayed {
			outcome = metrics.OutcomeReplayed
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("reservation.outcome", outcome))
		span.End()
		r.metrics.ObserveReservation(outcome, time.Since(started).Seconds())
	}()

	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if req.Now.IsZero() {
		req.Now = r.now()
	}

	txCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err = r.store.WithTx(txCtx, func(ctx context.Context, tx Tx) error {
		var txErr error
		res, txErr = r.reserve(ctx, tx, req)
		return txErr
	})
	if err != nil {
		err = r.classify(txCtx, req, err)
		return Result{}, err
	}

	r.logger.Info("appointment reserved",
		"tenant_id", req.TenantID,
		"appointment_id", res.Appointment.ID,
		"provider_id", req.ProviderID,
		"start_at", res.Appointment.StartAt,
		"status", res.Appointment.Status,
		"replayed", res.Replayed,
	)
	return res, nil
}

func (r *Reserver) reserve(ctx context.Context, tx Tx, req Request) (Result, error) {
	if err := tx.LockSchedule(ctx, LockKeys(req.TenantID, req.ProviderID, req.ResourceID)...); err != nil {
		return Result{}, fmt.Errorf("lock schedule: %w", err)
	}

	if req.IdempotencyKey != "" {
		existing, err := tx.LockIdempotencyKey(ctx, req.TenantID, req.IdempotencyKey)
		if err != nil {
			return Result{}, fmt.Errorf("lock idempotency key: %w", err)
		}
		if existing != "" {
			appt, err := tx.GetAppointment(ctx, req.TenantID, existing)
			if err != nil {
				return Result{}, fmt.Errorf("load replayed appointment: %w", err)
			}
			return Result{Appointment: appt, Replayed: true}, nil
		}
	}

	plan, err := availability.BuildPlan(ctx, tx, availability.Query{
		TenantID:   req.TenantID,
		ServiceID:  req.ServiceID,
		ProviderID: req.ProviderID,
		LocationID: req.LocationID,
		RangeStart: req.Start,
		RangeEnd:   req.Start.Add(time.Minute),
		Now:        req.Now,
	})
	if err != nil {
		return Result{}, err
	}
	if !availability.WithinPolicyWindow(req.Start, plan.Rule, req.Now) {
		return Result{}, fmt.Errorf("%w: %s", model.ErrOutOfPolicyWindow, req.Start.UTC().Format(time.RFC3339))
	}
	slot, ok := findSlot(plan.Grid, req.Start)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s is not an open slot", model.ErrSlotUnavailable, req.Start.UTC().Format(time.RFC3339))
	}

	doubleBook := plan.Capacity == 1 && plan.Rule.AllowDoubleBook
	if !doubleBook {
		busy, err := tx.OverlappingAppointments(ctx, req.TenantID, req.ProviderID, req.ResourceID, slot.StartTime, slot.EndTime)
		if err != nil {
			return Result{}, fmt.Errorf("load overlapping appointments: %w", err)
		}
		switch {
		case plan.Capacity > 1 && len(busy)+1 > plan.Capacity:
			return Result{}, fmt.Errorf("%w: %d of %d taken", model.ErrCapacityExceeded, len(busy), plan.Capacity)
		case plan.Capacity == 1 && len(busy) > 0:
			return Result{}, fmt.Errorf("%w: overlaps appointment %s", model.ErrSlotConflict, busy[0].ID)
		}
	}

	status := model.StatusConfirmed
	if req.RequireConfirmation {
		status = model.StatusPending
	}
	price := plan.PriceCents
	appt := model.Appointment{
		ID:          r.newID(),
		TenantID:    req.TenantID,
		LocationID:  req.LocationID,
		ProviderID:  req.ProviderID,
		ResourceID:  req.ResourceID,
		ServiceID:   req.ServiceID,
		CustomerRef: req.CustomerRef,
		StartAt:     slot.StartTime,
		EndAt:       slot.EndTime,
		Status:      status,
		PriceCents:  &price,
		Exclusive:   plan.Capacity == 1 && !plan.Rule.AllowDoubleBook,
		CreatedAt:   req.Now,
	}
	if err := tx.InsertAppointment(ctx, appt); err != nil {
		return Result{}, fmt.Errorf("insert appointment: %w", err)
	}

	evt, err := reservedEvent(appt)
	if err != nil {
		return Result{}, err
	}
	if err := tx.InsertOutboxEvent(ctx, evt); err != nil {
		return Result{}, fmt.Errorf("insert outbox event: %w", err)
	}
	if req.IdempotencyKey != "" {
		if err := tx.FinalizeIdempotency(ctx, req.TenantID, req.IdempotencyKey, appt.ID); err != nil {
			return Result{}, fmt.Errorf("finalize idempotency key: %w", err)
		}
	}
	return Result{Appointment: appt}, nil
}

// classify maps infrastructure failures onto reservation errors. Business errors pass through.
func (r *Reserver) classify(ctx context.Context, req Request, err error) error {
	switch {
	case errors.Is(err, model.ErrSlotConflict),
		errors.Is(err, model.ErrCapacityExceeded),
		errors.Is(err, model.ErrOutOfPolicyWindow),
		errors.Is(err, model.ErrSlotUnavailable),
		errors.Is(err, model.ErrInvalidQuery),
		errors.Is(err, model.ErrNotFound):
		r.logger.Info("reservation rejected", "tenant_id", req.TenantID, "provider_id", req.ProviderID, "reason", err.Error())
		return err
	case errors.Is(err, model.ErrInvalidScheduleData):
		r.logger.Error("invalid schedule data", "tenant_id", req.TenantID, "provider_id", req.ProviderID, "location_id", req.LocationID, "err", err)
		return err
	case db.IsExclusionViolation(err):
		return fmt.Errorf("%w: %v", model.ErrSlotConflict, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded), db.IsRetryable(err):
		r.logger.Warn("reservation timed out", "tenant_id", req.TenantID, "provider_id", req.ProviderID, "err", err)
		return fmt.Errorf("%w: %v", model.ErrReservationTimeout, err)
	default:
		r.logger.Error("reservation failed", "tenant_id", req.TenantID, "provider_id", req.ProviderID, "err", err)
		return err
	}
}

// LockKeys returns the advisory lock keys for a reservation in a stable order, so two
// transactions touching the same provider and resource never wait on each other crosswise.
func LockKeys(tenantID, providerID string, resourceID *string) []string {
	keys := []string{"provider:" + tenantID + ":" + providerID}
	if resourceID != nil && *resourceID != "" {
		keys = append(keys, "resource:"+tenantID+":"+*resourceID)
	}
	sort.Strings(keys)
	return keys
}

func findSlot(slots []model.Slot, start time.Time) (model.Slot, bool) {
	for _, s := range slots {
		if s.StartTime.Equal(start) {
			return s, true
		}
	}
	return model.Slot{}, false
}

func reservedEvent(appt model.Appointment) (outbox.Event, error) {
	payload, err := json.Marshal(outbox.AppointmentReserved{
		AppointmentID: appt.ID,
		TenantID:      appt.TenantID,
		LocationID:    appt.LocationID,
		ProviderID:    appt.ProviderID,
		ResourceID:    appt.ResourceID,
		ServiceID:     appt.ServiceID,
		CustomerRef:   appt.CustomerRef,
		StartAt:       appt.StartAt.UTC(),
		EndAt:         appt.EndAt.UTC(),
		Status:        string(appt.Status),
		PriceCents:    appt.PriceCents,
	})
	if err != nil {
		return outbox.Event{}, fmt.Errorf("marshal reserved event: %w", err)
	}
	return outbox.Event{
		EventID:       uuid.NewString(),
		TenantID:      appt.TenantID,
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentReserved,
		Payload:       payload,
	}, nil
}
