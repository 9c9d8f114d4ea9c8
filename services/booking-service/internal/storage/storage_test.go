package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/outbox"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/reservation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantID = "8a6e0804-2bd0-4672-b79d-d97027f9071a"

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestGetLocation(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectQuery("FROM locations").
		WithArgs(tenantID, "loc-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "timezone"}).AddRow("loc-1", "America/New_York"))
	loc, err := repo.GetLocation(context.Background(), tenantID, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, model.Location{ID: "loc-1", TenantID: tenantID, Timezone: "America/New_York"}, loc)

	mock.ExpectQuery("FROM locations").
		WithArgs(tenantID, "missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetLocation(context.Background(), tenantID, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProviderService(t *testing.T) {
	mock := newMock(t)
	minutes, capacity := 45, 4
	mock.ExpectQuery("FROM provider_services").
		WithArgs(tenantID, "prov-1", "svc-1").
		WillReturnRows(pgxmock.NewRows([]string{"price_cents", "duration_minutes", "capacity_override"}).
			AddRow(int64(7500), &minutes, &capacity))

	ps, err := NewRepository(mock).GetProviderService(context.Background(), tenantID, "prov-1", "svc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7500), ps.PriceCents)
	require.NotNil(t, ps.DurationMinutes)
	assert.Equal(t, 45, *ps.DurationMinutes)
	require.NotNil(t, ps.CapacityOverride)
	assert.Equal(t, 4, *ps.CapacityOverride)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWorkingHours(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM working_hours").
		WithArgs(tenantID, "prov-1", "loc-1").
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "start_minute", "end_minute"}).
			AddRow(0, 540, 720).
			AddRow(0, 780, 1020))

	hours, err := NewRepository(mock).GetWorkingHours(context.Background(), tenantID, "prov-1", "loc-1")
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, model.WorkingHours{ProviderID: "prov-1", LocationID: "loc-1", Weekday: 0, StartMinute: 780, EndMinute: 1020}, hours[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingRule_SplitsServiceAndTenantRules(t *testing.T) {
	mock := newMock(t)
	svc := "svc-1"
	mock.ExpectQuery("FROM booking_rules").
		WithArgs(tenantID, svc).
		WillReturnRows(pgxmock.NewRows([]string{"service_id", "min_notice_minutes", "max_horizon_days", "cancel_cutoff_minutes", "allow_double_book"}).
			AddRow(&svc, 60, 14, 120, false).
			AddRow((*string)(nil), 0, 90, 0, true))

	serviceRule, tenantRule, err := NewRepository(mock).GetBookingRule(context.Background(), tenantID, svc)
	require.NoError(t, err)
	require.NotNil(t, serviceRule)
	require.NotNil(t, tenantRule)
	assert.Equal(t, 60, serviceRule.MinNoticeMinutes)
	assert.Equal(t, 90, tenantRule.MaxHorizonDays)
	assert.True(t, tenantRule.AllowDoubleBook)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOverlappingAppointments(t *testing.T) {
	mock := newMock(t)
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	room := "room-1"
	price := int64(4500)

	cols := []string{"id", "tenant_id", "location_id", "provider_id", "resource_id", "service_id", "customer_ref",
		"start_at", "end_at", "status", "price_cents", "exclusive", "created_at"}
	mock.ExpectQuery("FROM appointments").
		WithArgs(tenantID, []string{"pending", "confirmed"}, start, end, "prov-1", &room).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("appt-1", tenantID, "loc-1", "prov-2", &room, "svc-1", "cust-1",
				start, end, "confirmed", &price, true, start.Add(-time.Hour)))

	appts, err := NewRepository(mock).OverlappingAppointments(context.Background(), tenantID, "prov-1", &room, start, end)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, model.StatusConfirmed, appts[0].Status)
	assert.Equal(t, "prov-2", appts[0].ProviderID)
	require.NotNil(t, appts[0].ResourceID)
	assert.Equal(t, room, *appts[0].ResourceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAppointment_ExclusionViolationIsConflict(t *testing.T) {
	mock := newMock(t)
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	appt := model.Appointment{
		ID: "appt-1", TenantID: tenantID, LocationID: "loc-1", ProviderID: "prov-1", ServiceID: "svc-1",
		CustomerRef: "cust-1", StartAt: start, EndAt: start.Add(30 * time.Minute),
		Status: model.StatusConfirmed, Exclusive: true, CreatedAt: start.Add(-time.Hour),
	}
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(appt.ID, tenantID, "loc-1", "prov-1", appt.ResourceID, "svc-1", "cust-1",
			appt.StartAt, appt.EndAt, "confirmed", appt.PriceCents, true, appt.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_provider_no_overlap"})

	err := NewRepository(mock).InsertAppointment(context.Background(), appt)
	require.ErrorIs(t, err, model.ErrSlotConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockSchedule_LocksEveryKeyInOrder(t *testing.T) {
	mock := newMock(t)
	keys := reservation.LockKeys(tenantID, "prov-1", nil)
	keys = append(keys, "resource:"+tenantID+":room-1")
	for _, k := range keys {
		mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(k).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	}

	require.NoError(t, NewRepository(mock).LockSchedule(context.Background(), keys...))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockIdempotencyKey(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs(tenantID, "key-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FROM booking_idempotency_keys").
		WithArgs(tenantID, "key-1").
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow("appt-9"))

	existing, err := repo.LockIdempotencyKey(context.Background(), tenantID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "appt-9", existing)

	mock.ExpectExec("UPDATE booking_idempotency_keys").
		WithArgs(tenantID, "key-2", "appt-10").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.FinalizeIdempotency(context.Background(), tenantID, "key-2", "appt-10"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithTx_CommitsOnSuccess(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	evt := outbox.Event{
		EventID: "evt-1", TenantID: tenantID, AggregateType: "appointment", AggregateID: "appt-1",
		EventType: outbox.EventAppointmentReserved, Payload: []byte(`{}`),
	}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(evt.EventID, tenantID, "appointment", "appt-1", outbox.EventAppointmentReserved, evt.Payload,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := NewStore(mock).WithTx(context.Background(), func(ctx context.Context, tx reservation.Tx) error {
		return tx.InsertOutboxEvent(ctx, evt)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithTx_RollsBackOnError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewStore(mock).WithTx(context.Background(), func(context.Context, reservation.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
