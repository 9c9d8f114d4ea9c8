// Package handlers exposes the availability engine and the reservation flow over HTTP.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/httpx"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/availability"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/reservation"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	TenantHeader         = "X-Tenant-Id"
	IdempotencyHeader    = "Idempotency-Key"
	ReplayedHeader       = "Idempotency-Replayed"
	maxIdempotencyKeyLen = 128
)

type SlotLister interface {
	ListAvailableSlots(ctx context.Context, q availability.Query) ([]model.Slot, error)
}

type Reserver interface {
	Reserve(ctx context.Context, req reservation.Request) (reservation.Result, error)
}

type BookingHandler struct {
	slots    SlotLister
	reserver Reserver
	logger   *slog.Logger
	validate *validator.Validate
}

func NewBookingHandler(slots SlotLister, reserver Reserver, logger *slog.Logger) *BookingHandler {
	v := validator.New()
	// Report json field names in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		}
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &BookingHandler{slots: slots, reserver: reserver, logger: logger, validate: v}
}

// Register mounts the public booking routes on r.
func (h *BookingHandler) Register(r chi.Router) {
	r.Route("/api/v1/public", func(r chi.Router) {
		r.Get("/slots", h.Slots)
		r.Post("/reservations", h.Reserve)
	})
}

// tenant reads the tenant header, answering 400 itself when it is missing or not a uuid.
func (h *BookingHandler) tenant(w http.ResponseWriter, r *http.Request, invalidCode string) (string, bool) {
	tenant := strings.TrimSpace(r.Header.Get(TenantHeader))
	if tenant == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_tenant", TenantHeader+" header is required")
		return "", false
	}
	if err := h.validate.Var(tenant, "uuid_rfc4122"); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, invalidCode, TenantHeader+" must be a uuid")
		return "", false
	}
	return tenant, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
