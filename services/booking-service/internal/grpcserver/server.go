package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/availability"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/calendar"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/reservation"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type SlotLister interface {
	ListAvailableSlots(ctx context.Context, q availability.Query) ([]model.Slot, error)
}

type Reserver interface {
	Reserve(ctx context.Context, req reservation.Request) (reservation.Result, error)
}

type Server struct {
	slots    SlotLister
	reserver Reserver
	logger   *slog.Logger
}

func NewServer(slots SlotLister, reserver Reserver, logger *slog.Logger) *Server {
	return &Server{slots: slots, reserver: reserver, logger: logger}
}

var _ AvailabilityServiceServer = (*Server)(nil)

func (s *Server) ListAvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	tenant, err := tenantFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	q := availability.Query{TenantID: tenant}
	if err := readIDs(in,
		idRef{"service_id", &q.ServiceID},
		idRef{"provider_id", &q.ProviderID},
		idRef{"location_id", &q.LocationID},
	); err != nil {
		return nil, err
	}
	if raw := field(in, "date"); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
		}
		q.Date = &d
	} else {
		if q.RangeStart, err = timeField(in, "from"); err != nil {
			return nil, err
		}
		if q.RangeEnd, err = timeField(in, "to"); err != nil {
			return nil, err
		}
	}

	slots, err := s.slots.ListAvailableSlots(ctx, q)
	if err != nil {
		return nil, s.toStatus(err)
	}
	items := make([]any, 0, len(slots))
	for _, sl := range slots {
		items = append(items, map[string]any{
			"start_time": sl.StartTime.UTC().Format(time.RFC3339),
			"end_time":   sl.EndTime.UTC().Format(time.RFC3339),
			"available":  sl.Available,
		})
	}
	return structpb.NewStruct(map[string]any{"slots": items})
}

func (s *Server) ReserveSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	tenant, err := tenantFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	start, err := timeField(in, "start_time")
	if err != nil {
		return nil, err
	}
	req := reservation.Request{
		TenantID:            tenant,
		Start:               start,
		CustomerRef:         field(in, "customer_ref"),
		RequireConfirmation: in.GetFields()["require_confirmation"].GetBoolValue(),
		IdempotencyKey:      field(in, "idempotency_key"),
	}
	var resourceID string
	if err := readIDs(in,
		idRef{"service_id", &req.ServiceID},
		idRef{"provider_id", &req.ProviderID},
		idRef{"location_id", &req.LocationID},
		idRef{"resource_id", &resourceID},
	); err != nil {
		return nil, err
	}
	if resourceID != "" {
		req.ResourceID = &resourceID
	}

	res, err := s.reserver.Reserve(ctx, req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	a := res.Appointment
	out := map[string]any{
		"appointment_id": a.ID,
		"provider_id":    a.ProviderID,
		"service_id":     a.ServiceID,
		"location_id":    a.LocationID,
		"start_time":     a.StartAt.UTC().Format(time.RFC3339),
		"end_time":       a.EndAt.UTC().Format(time.RFC3339),
		"status":         string(a.Status),
		"replayed":       res.Replayed,
	}
	if a.ResourceID != nil {
		out["resource_id"] = *a.ResourceID
	}
	if a.PriceCents != nil {
		out["price_cents"] = *a.PriceCents
	}
	return structpb.NewStruct(out)
}

func tenantFromMetadata(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get(TenantMetadataKey) {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return "", status.Error(codes.InvalidArgument, TenantMetadataKey+" must be a uuid")
		}
		return id.String(), nil
	}
	return "", status.Error(codes.InvalidArgument, TenantMetadataKey+" metadata is required")
}

func field(in *structpb.Struct, key string) string {
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

type idRef struct {
	key string
	dst *string
}

// readIDs stores the canonical form of each uuid field; absent fields stay empty.
func readIDs(in *structpb.Struct, refs ...idRef) error {
	for _, r := range refs {
		raw := field(in, r.key)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "%s must be a uuid", r.key)
		}
		*r.dst = id.String()
	}
	return nil
}

func timeField(in *structpb.Struct, key string) (time.Time, error) {
	raw := field(in, key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s must be RFC3339", key)
	}
	return t, nil
}

var codeMappings = []struct {
	target error
	code   codes.Code
}{
	{model.ErrInvalidQuery, codes.InvalidArgument},
	{model.ErrNotFound, codes.NotFound},
	{model.ErrSlotConflict, codes.Aborted},
	{model.ErrCapacityExceeded, codes.ResourceExhausted},
	{model.ErrOutOfPolicyWindow, codes.FailedPrecondition},
	{model.ErrSlotUnavailable, codes.FailedPrecondition},
	{model.ErrReservationTimeout, codes.Unavailable},
	{model.ErrInvalidScheduleData, codes.Internal},
}

func (s *Server) toStatus(err error) error {
	for _, m := range codeMappings {
		if errors.Is(err, m.target) {
			if m.code == codes.Internal {
				return status.Error(m.code, m.target.Error())
			}
			return status.Error(m.code, err.Error())
		}
	}
	s.logger.Error("grpc call failed", "err", err)
	return status.Error(codes.Internal, "internal error")
}
