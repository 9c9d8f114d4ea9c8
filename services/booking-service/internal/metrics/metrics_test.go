package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSlotQuery(OutcomeOK, 0.01, 16)
	m.ObserveSlotQuery(OutcomeInvalidSchedule, 0.002, 0)
	m.ObserveReservation(OutcomeConflict, 0.05)
	m.ObserveReservation(OutcomeOK, 0.03)
	m.ObserveReservation(OutcomeOK, 0.04)

	if got := testutil.ToFloat64(m.slotQueries.WithLabelValues(OutcomeOK)); got != 1 {
		t.Fatalf("ok queries = %v", got)
	}
	if got := testutil.ToFloat64(m.reservations.WithLabelValues(OutcomeOK)); got != 2 {
		t.Fatalf("ok reservations = %v", got)
	}
	if got := testutil.ToFloat64(m.reservations.WithLabelValues(OutcomeConflict)); got != 1 {
		t.Fatalf("conflicts = %v", got)
	}
}

func TestNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSlotQuery(OutcomeOK, 0.1, 3)
	m.ObserveReservation(OutcomeTimeout, 0.1)
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("tx: %w", model.ErrSlotConflict), OutcomeConflict},
		{model.ErrCapacityExceeded, OutcomeCapacity},
		{model.ErrReservationTimeout, OutcomeTimeout},
		{model.ErrInvalidScheduleData, OutcomeInvalidSchedule},
		{errors.New("db down"), OutcomeError},
	}
	for _, tc := range cases {
		if got := Outcome(tc.err); got != tc.want {
			t.Fatalf("Outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
