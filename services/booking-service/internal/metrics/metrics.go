package metrics

import (
	"errors"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for slot queries and reservations.
type Metrics struct {
	slotQueries        *prometheus.CounterVec
	slotQueryLatency   *prometheus.HistogramVec
	slotsReturned      prometheus.Histogram
	reservations       *prometheus.CounterVec
	reservationLatency *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sloty",
			Subsystem: "availability",
			Name:      "queries_total",
			Help:      "Slot queries by outcome",
		}, []string{"outcome"}),
		slotQueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sloty",
			Subsystem: "availability",
			Name:      "query_duration_seconds",
			Help:      "Latency of slot generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sloty",
			Subsystem: "availability",
			Name:      "slots_returned",
			Help:      "Slots returned per successful query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sloty",
			Subsystem: "reservation",
			Name:      "attempts_total",
			Help:      "Reservation attempts by outcome",
		}, []string{"outcome"}),
		reservationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sloty",
			Subsystem: "reservation",
			Name:      "duration_seconds",
			Help:      "Latency of the reservation transaction",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueries, m.slotQueryLatency, m.slotsReturned, m.reservations, m.reservationLatency)
	return m
}

func (m *Metrics) ObserveSlotQuery(outcome string, seconds float64, slots int) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(outcome).Inc()
	m.slotQueryLatency.WithLabelValues(outcome).Observe(seconds)
	if outcome == OutcomeOK {
		m.slotsReturned.Observe(float64(slots))
	}
}

func (m *Metrics) ObserveReservation(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
	m.reservationLatency.WithLabelValues(outcome).Observe(seconds)
}

// Outcome labels shared by the engine and the reserver.
const (
	OutcomeOK              = "ok"
	OutcomeReplayed        = "replayed"
	OutcomeConflict        = "conflict"
	OutcomeCapacity        = "capacity_exceeded"
	OutcomeOutOfPolicy     = "out_of_policy"
	OutcomeUnavailable     = "unavailable"
	OutcomeTimeout         = "timeout"
	OutcomeInvalidSchedule = "invalid_schedule"
	OutcomeInvalidQuery    = "invalid_query"
	OutcomeNotFound        = "not_found"
	OutcomeError           = "error"
)

// Outcome maps an engine or reservation error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, model.ErrSlotConflict):
		return OutcomeConflict
	case errors.Is(err, model.ErrCapacityExceeded):
		return OutcomeCapacity
	case errors.Is(err, model.ErrOutOfPolicyWindow):
		return OutcomeOutOfPolicy
	case errors.Is(err, model.ErrSlotUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, model.ErrReservationTimeout):
		return OutcomeTimeout
	case errors.Is(err, model.ErrInvalidScheduleData):
		return OutcomeInvalidSchedule
	case errors.Is(err, model.ErrInvalidQuery):
		return OutcomeInvalidQuery
	case errors.Is(err, model.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
