// Package model holds the scheduling entities the availability engine reads and the
// reservation flow writes. Everything is scoped to one tenant.
package model

import "time"

type Provider struct {
	ID       string
	TenantID string
	IsActive bool
}

// Location carries the IANA timezone all working hours and local days are interpreted in.
type Location struct {
	ID       string
	TenantID string
	Timezone string
}

// WorkingHours is one open range on a weekday, in minutes since local midnight.
// Weekday is 0=Monday..6=Sunday.
type WorkingHours struct {
	ProviderID  string
	LocationID  string
	Weekday     int
	StartMinute int
	EndMinute   int
}

// LocationClosure blocks [StartsAt, EndsAt) for every provider at the location.
type LocationClosure struct {
	LocationID string
	StartsAt   time.Time
	EndsAt     time.Time
	Reason     string
}

type Service struct {
	ID                     string
	TenantID               string
	DefaultDurationMinutes int
	DefaultCapacity        int
	// SlotStepMinutes is the grid spacing; 0 means slots are laid back to back.
	SlotStepMinutes int
}

// ProviderService overrides service defaults for one provider.
type ProviderService struct {
	ProviderID       string
	ServiceID        string
	PriceCents       int64
	DurationMinutes  *int
	CapacityOverride *int
}

type BookingRule struct {
	TenantID            string
	ServiceID           *string
	MinNoticeMinutes    int
	MaxHorizonDays      int
	CancelCutoffMinutes int
	AllowDoubleBook     bool
}

// DefaultBookingRule applies when neither a service rule nor a tenant default exists.
func DefaultBookingRule() BookingRule {
	return BookingRule{MinNoticeMinutes: 0, MaxHorizonDays: 365}
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCanceled  AppointmentStatus = "canceled"
	StatusCompleted AppointmentStatus = "completed"
)

// ActiveStatuses occupy capacity.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

type Appointment struct {
	ID          string
	TenantID    string
	LocationID  string
	ProviderID  string
	ResourceID  *string
	ServiceID   string
	CustomerRef string
	StartAt     time.Time
	EndAt       time.Time
	Status      AppointmentStatus
	PriceCents  *int64
	// Exclusive rows are guarded by the database exclusion constraint.
	Exclusive bool
	CreatedAt time.Time
}

// Slot is derived on every query and never stored.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}
