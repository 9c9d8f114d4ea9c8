// Package grpcserver serves the availability engine and the reservation flow over gRPC.
// Messages are google.protobuf.Struct, so the service needs no generated stubs.
package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "sloty.booking.v1.AvailabilityService"

	listAvailableSlotsMethod = "/" + ServiceName + "/ListAvailableSlots"
	reserveSlotMethod        = "/" + ServiceName + "/ReserveSlot"

	// TenantMetadataKey carries the tenant id, mirroring the HTTP X-Tenant-Id header.
	TenantMetadataKey = "x-tenant-id"
)

type AvailabilityServiceServer interface {
	ListAvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ReserveSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListAvailableSlots", Handler: listAvailableSlotsHandler},
		{MethodName: "ReserveSlot", Handler: reserveSlotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sloty/booking/v1/availability.proto",
}

func RegisterAvailabilityServiceServer(s grpc.ServiceRegistrar, srv AvailabilityServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func listAvailableSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServiceServer).ListAvailableSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listAvailableSlotsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServiceServer).ListAvailableSlots(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func reserveSlotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServiceServer).ReserveSlot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: reserveSlotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServiceServer).ReserveSlot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls AvailabilityService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListAvailableSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listAvailableSlotsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReserveSlot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, reserveSlotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
