package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/httpx"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/go-playground/validator/v10"
)

// retryAfterSeconds is sent with 503 on a reservation timeout.
const retryAfterSeconds = "1"

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{model.ErrInvalidQuery, http.StatusBadRequest, "invalid_query"},
	{model.ErrNotFound, http.StatusNotFound, "not_found"},
	{model.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
	{model.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{model.ErrOutOfPolicyWindow, http.StatusUnprocessableEntity, "out_of_policy_window"},
	{model.ErrSlotUnavailable, http.StatusUnprocessableEntity, "slot_unavailable"},
	{model.ErrReservationTimeout, http.StatusServiceUnavailable, "reservation_timeout"},
	{model.ErrInvalidScheduleData, http.StatusInternalServerError, "invalid_schedule_data"},
}

func (h *BookingHandler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		msg := m.target.Error()
		if m.status < http.StatusInternalServerError {
			msg = err.Error()
		}
		httpx.WriteError(w, m.status, m.code, msg)
		return
	}
	h.logger.Error("request failed", "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_without", "required_with":
			parts = append(parts, fe.Field()+" is required")
		case "uuid_rfc4122":
			parts = append(parts, fe.Field()+" must be a uuid")
		case "datetime":
			parts = append(parts, fmt.Sprintf("%s must match %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
