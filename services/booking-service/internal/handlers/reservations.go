package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/httpx"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/reservation"
)

type reserveRequest struct {
	ServiceID           string  `json:"service_id" validate:"required,uuid_rfc4122"`
	ProviderID          string  `json:"provider_id" validate:"required,uuid_rfc4122"`
	LocationID          string  `json:"location_id" validate:"required,uuid_rfc4122"`
	ResourceID          *string `json:"resource_id" validate:"omitempty,uuid_rfc4122"`
	StartTime           string  `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	CustomerRef         string  `json:"customer_ref" validate:"required,max=256"`
	RequireConfirmation bool    `json:"require_confirmation"`
}

type appointmentResponse struct {
	AppointmentID string  `json:"appointment_id"`
	ProviderID    string  `json:"provider_id"`
	ServiceID     string  `json:"service_id"`
	LocationID    string  `json:"location_id"`
	ResourceID    *string `json:"resource_id,omitempty"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Status        string  `json:"status"`
	PriceCents    *int64  `json:"price_cents,omitempty"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		AppointmentID: a.ID,
		ProviderID:    a.ProviderID,
		ServiceID:     a.ServiceID,
		LocationID:    a.LocationID,
		ResourceID:    a.ResourceID,
		StartTime:     formatTime(a.StartAt),
		EndTime:       formatTime(a.EndAt),
		Status:        string(a.Status),
		PriceCents:    a.PriceCents,
	}
}

// Reserve answers POST /api/v1/public/reservations. A replayed Idempotency-Key returns the
// original appointment with 200 instead of 201.
func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r, "invalid_request")
	if !ok {
		return
	}
	idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(idemKey) > maxIdempotencyKeyLen {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Idempotency-Key is too long")
		return
	}

	var in reserveRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return
	}
	in.CustomerRef = strings.TrimSpace(in.CustomerRef)
	if in.ResourceID != nil && strings.TrimSpace(*in.ResourceID) == "" {
		in.ResourceID = nil
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return
	}
	start, _ := time.Parse(time.RFC3339, in.StartTime)

	res, err := h.reserver.Reserve(r.Context(), reservation.Request{
		TenantID:            tenant,
		ServiceID:           in.ServiceID,
		ProviderID:          in.ProviderID,
		LocationID:          in.LocationID,
		ResourceID:          in.ResourceID,
		Start:               start,
		CustomerRef:         in.CustomerRef,
		RequireConfirmation: in.RequireConfirmation,
		IdempotencyKey:      idemKey,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set(ReplayedHeader, "true")
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, toAppointmentResponse(res.Appointment))
}
