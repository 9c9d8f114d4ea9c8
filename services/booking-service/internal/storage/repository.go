package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/db"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and writes one tenant's schedule data. Every statement is filtered by tenant_id.
type Repository struct {
	db DBTX
}

func NewRepository(conn DBTX) *Repository {
	return &Repository{db: conn}
}

func notFound(err error, what, id string) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("%s %s: %w", what, id, model.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func (r *Repository) GetLocation(ctx context.Context, tenantID, locationID string) (model.Location, error) {
	loc := model.Location{TenantID: tenantID}
	err := r.db.QueryRow(ctx, `
		SELECT id::text, timezone
		FROM locations
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, locationID).Scan(&loc.ID, &loc.Timezone)
	if err != nil {
		return model.Location{}, notFound(err, "location", locationID)
	}
	return loc, nil
}

func (r *Repository) GetProvider(ctx context.Context, tenantID, providerID string) (model.Provider, error) {
	p := model.Provider{TenantID: tenantID}
	err := r.db.QueryRow(ctx, `
		SELECT id::text, is_active
		FROM providers
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, providerID).Scan(&p.ID, &p.IsActive)
	if err != nil {
		return model.Provider{}, notFound(err, "provider", providerID)
	}
	return p, nil
}

func (r *Repository) GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	s := model.Service{TenantID: tenantID}
	err := r.db.QueryRow(ctx, `
		SELECT id::text, default_duration_minutes, default_capacity, slot_step_minutes
		FROM services
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, serviceID).Scan(&s.ID, &s.DefaultDurationMinutes, &s.DefaultCapacity, &s.SlotStepMinutes)
	if err != nil {
		return model.Service{}, notFound(err, "service", serviceID)
	}
	return s, nil
}

func (r *Repository) GetProviderService(ctx context.Context, tenantID, providerID, serviceID string) (model.ProviderService, error) {
	ps := model.ProviderService{ProviderID: providerID, ServiceID: serviceID}
	err := r.db.QueryRow(ctx, `
		SELECT price_cents, duration_minutes, capacity_override
		FROM provider_services
		WHERE tenant_id = $1 AND provider_id = $2 AND service_id = $3
	`, tenantID, providerID, serviceID).Scan(&ps.PriceCents, &ps.DurationMinutes, &ps.CapacityOverride)
	if err != nil {
		return model.ProviderService{}, notFound(err, "provider service", providerID+"/"+serviceID)
	}
	return ps, nil
}

func (r *Repository) GetWorkingHours(ctx context.Context, tenantID, providerID, locationID string) ([]model.WorkingHours, error) {
	rows, err := r.db.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM working_hours
		WHERE tenant_id = $1 AND provider_id = $2 AND location_id = $3
		ORDER BY weekday, start_minute
	`, tenantID, providerID, locationID)
	if err != nil {
		return nil, fmt.Errorf("query working hours: %w", err)
	}
	defer rows.Close()

	var hours []model.WorkingHours
	for rows.Next() {
		wh := model.WorkingHours{ProviderID: providerID, LocationID: locationID}
		if err := rows.Scan(&wh.Weekday, &wh.StartMinute, &wh.EndMinute); err != nil {
			return nil, err
		}
		hours = append(hours, wh)
	}
	return hours, rows.Err()
}

func (r *Repository) GetClosures(ctx context.Context, tenantID, locationID string, start, end time.Time) ([]model.LocationClosure, error) {
	rows, err := r.db.Query(ctx, `
		SELECT starts_at, ends_at, COALESCE(reason, '')
		FROM location_closures
		WHERE tenant_id = $1 AND location_id = $2
			AND starts_at < $4
			AND ends_at > $3
		ORDER BY starts_at
	`, tenantID, locationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query closures: %w", err)
	}
	defer rows.Close()

	var closures []model.LocationClosure
	for rows.Next() {
		c := model.LocationClosure{LocationID: locationID}
		if err := rows.Scan(&c.StartsAt, &c.EndsAt, &c.Reason); err != nil {
			return nil, err
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

func (r *Repository) GetBookingRule(ctx context.Context, tenantID, serviceID string) (*model.BookingRule, *model.BookingRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT service_id::text, min_notice_minutes, max_horizon_days, cancel_cutoff_minutes, allow_double_book
		FROM booking_rules
		WHERE tenant_id = $1 AND (service_id = $2 OR service_id IS NULL)
	`, tenantID, serviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("query booking rules: %w", err)
	}
	defer rows.Close()

	var serviceRule, tenantRule *model.BookingRule
	for rows.Next() {
		rule := model.BookingRule{TenantID: tenantID}
		if err := rows.Scan(&rule.ServiceID, &rule.MinNoticeMinutes, &rule.MaxHorizonDays, &rule.CancelCutoffMinutes, &rule.AllowDoubleBook); err != nil {
			return nil, nil, err
		}
		if rule.ServiceID != nil {
			serviceRule = &rule
		} else {
			tenantRule = &rule
		}
	}
	return serviceRule, tenantRule, rows.Err()
}

const appointmentColumns = `id::text, tenant_id::text, location_id::text, provider_id::text, resource_id::text,
	service_id::text, customer_ref, start_at, end_at, status, price_cents, exclusive, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(&a.ID, &a.TenantID, &a.LocationID, &a.ProviderID, &a.ResourceID,
		&a.ServiceID, &a.CustomerRef, &a.StartAt, &a.EndAt, &status, &a.PriceCents, &a.Exclusive, &a.CreatedAt)
	a.Status = model.AppointmentStatus(status)
	return a, err
}

func activeStatuses() []string {
	out := make([]string, len(model.ActiveStatuses))
	for i, s := range model.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *Repository) OverlappingAppointments(ctx context.Context, tenantID, providerID string, resourceID *string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
			AND status = ANY($2)
			AND start_at < $4
			AND end_at > $3
			AND (provider_id = $5 OR ($6::uuid IS NOT NULL AND resource_id = $6::uuid))
		ORDER BY start_at
	`, tenantID, activeStatuses(), start, end, providerID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query overlapping appointments: %w", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (r *Repository) GetAppointment(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, appointmentID))
	if err != nil {
		return model.Appointment{}, notFound(err, "appointment", appointmentID)
	}
	return a, nil
}

// InsertAppointment maps an exclusion constraint violation to model.ErrSlotConflict.
func (r *Repository) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments
			(id, tenant_id, location_id, provider_id, resource_id, service_id, customer_ref,
			 start_at, end_at, status, price_cents, exclusive, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.TenantID, a.LocationID, a.ProviderID, a.ResourceID, a.ServiceID, a.CustomerRef,
		a.StartAt, a.EndAt, string(a.Status), a.PriceCents, a.Exclusive, a.CreatedAt)
	if db.IsExclusionViolation(err) {
		return fmt.Errorf("%w: %v", model.ErrSlotConflict, err)
	}
	return err
}

func (r *Repository) InsertOutboxEvent(ctx context.Context, evt outbox.Event) error {
	return outbox.Insert(ctx, r.db, evt)
}
