package handlers

import (
	"net/http"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/httpx"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/availability"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/calendar"
)

type slotsQuery struct {
	ServiceID  string `query:"service_id" validate:"required,uuid_rfc4122"`
	ProviderID string `query:"provider_id" validate:"required,uuid_rfc4122"`
	LocationID string `query:"location_id" validate:"required,uuid_rfc4122"`
	Date       string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	From       string `query:"from" validate:"required_without=Date,omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To         string `query:"to" validate:"required_with=From,omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

type slotsResponse struct {
	Slots []slotItem `json:"slots"`
}

// Slots answers GET /api/v1/public/slots for either a local date or an explicit from/to range.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r, "invalid_query")
	if !ok {
		return
	}

	values := r.URL.Query()
	in := slotsQuery{
		ServiceID:  values.Get("service_id"),
		ProviderID: values.Get("provider_id"),
		LocationID: values.Get("location_id"),
		Date:       values.Get("date"),
		From:       values.Get("from"),
		To:         values.Get("to"),
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_query", validationMessage(err))
		return
	}

	q := availability.Query{
		TenantID:   tenant,
		ServiceID:  in.ServiceID,
		ProviderID: in.ProviderID,
		LocationID: in.LocationID,
	}
	if in.Date != "" {
		d, err := calendar.ParseDate(in.Date)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_query", "date must be YYYY-MM-DD")
			return
		}
		q.Date = &d
	} else {
		// Both parse: the validator checked the RFC3339 layout.
		q.RangeStart, _ = time.Parse(time.RFC3339, in.From)
		q.RangeEnd, _ = time.Parse(time.RFC3339, in.To)
	}

	slots, err := h.slots.ListAvailableSlots(r.Context(), q)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := slotsResponse{Slots: make([]slotItem, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			StartTime: formatTime(s.StartTime),
			EndTime:   formatTime(s.EndTime),
			Available: s.Available,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
