package outbox

import "time"

// EventAppointmentReserved is published once per committed reservation.
const EventAppointmentReserved = "booking.appointment.reserved.v1"

// Event is the envelope written to outbox_events in the same transaction as the state change.
// The Kafka topic equals EventType.
type Event struct {
	EventID       string
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentReserved is the payload of EventAppointmentReserved.
type AppointmentReserved struct {
	AppointmentID string    `json:"appointment_id"`
	TenantID      string    `json:"tenant_id"`
	LocationID    string    `json:"location_id"`
	ProviderID    string    `json:"provider_id"`
	ResourceID    *string   `json:"resource_id,omitempty"`
	ServiceID     string    `json:"service_id"`
	CustomerRef   string    `json:"customer_ref"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Status        string    `json:"status"`
	PriceCents    *int64    `json:"price_cents,omitempty"`
}
