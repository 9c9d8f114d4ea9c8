package availability

import (
	"context"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
)

// Source is the tenant-scoped schedule data the engine reads. Lookups of a missing entity
// return an error wrapping model.ErrNotFound.
type Source interface {
	GetLocation(ctx context.Context, tenantID, locationID string) (model.Location, error)
	GetProvider(ctx context.Context, tenantID, providerID string) (model.Provider, error)
	GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	GetProviderService(ctx context.Context, tenantID, providerID, serviceID string) (model.ProviderService, error)
	GetWorkingHours(ctx context.Context, tenantID, providerID, locationID string) ([]model.WorkingHours, error)
	// GetClosures returns closures of the location that overlap [start, end).
	GetClosures(ctx context.Context, tenantID, locationID string, start, end time.Time) ([]model.LocationClosure, error)
	// GetBookingRule returns the rule bound to the service and the tenant default; either may be nil.
	GetBookingRule(ctx context.Context, tenantID, serviceID string) (serviceRule, tenantRule *model.BookingRule, err error)
}

// Occupancy lists active appointments of a provider, or of a resource when resourceID is set,
// overlapping [start, end), ordered by start.
type Occupancy interface {
	OverlappingAppointments(ctx context.Context, tenantID, providerID string, resourceID *string, start, end time.Time) ([]model.Appointment, error)
}
