package model

import "errors"

var (
	// ErrInvalidScheduleData marks malformed working hours or closures. It fails the whole query.
	ErrInvalidScheduleData = errors.New("invalid schedule data")
	ErrSlotConflict        = errors.New("slot conflict")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	// ErrReservationTimeout is retryable; the transaction was rolled back.
	ErrReservationTimeout = errors.New("reservation timed out")
	ErrOutOfPolicyWindow  = errors.New("outside booking policy window")
	// ErrSlotUnavailable means the requested start is not a generated slot (closed, off grid, inactive provider).
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrNotFound        = errors.New("not found")
	ErrInvalidQuery    = errors.New("invalid query")
)
